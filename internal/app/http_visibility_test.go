package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"movesethub/api/internal/moderation"
	"movesethub/api/internal/store"
)

func doRequest(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func parseBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func tokenFor(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	sess, err := svc.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("create session for %s: %v", userID, err)
	}
	return sess.Token
}

// seedMoveset inserts a moveset with credits and a single moderation event.
func seedMoveset(t *testing.T, fs *memStore, m store.Moveset, modderIDs []int64, actorID string, state moderation.State) store.Moveset {
	t.Helper()
	ctx := context.Background()
	inserted, err := fs.InsertMoveset(ctx, m)
	if err != nil {
		t.Fatalf("insert moveset: %v", err)
	}
	if err := fs.SetMovesetModders(ctx, inserted.ID, modderIDs); err != nil {
		t.Fatalf("set credits: %v", err)
	}
	if _, err := fs.AppendEvent(ctx, moderation.Event{
		ActorID:  actorID,
		ItemType: moderation.ItemMoveset,
		ItemID:   inserted.ID,
		State:    state,
	}, 0); err != nil {
		t.Fatalf("append event: %v", err)
	}
	return inserted
}

func listedMovesetNames(t *testing.T, rr *httptest.ResponseRecorder) []string {
	t.Helper()
	payload := parseBody(t, rr)
	raw, ok := payload["movesets"].([]any)
	if !ok {
		t.Fatalf("expected movesets array, got %v", payload)
	}
	names := make([]string, 0, len(raw))
	for _, item := range raw {
		view := item.(map[string]any)
		names = append(names, view["name"].(string))
	}
	return names
}

func TestBlockedMovesetHiddenFromStrangers(t *testing.T) {
	fs := newMemStore()
	seedUser(fs, "usr_admin", "admin", nil)
	seedUser(fs, "usr_owner", "modder", int64Ptr(1))
	seedUser(fs, "usr_other", "modder", int64Ptr(2))
	fs.modders[1] = store.Modder{ID: 1, Name: "Owner"}
	fs.modders[2] = store.Modder{ID: 2, Name: "Other"}
	fs.nextID = 2

	seedMoveset(t, fs, store.Moveset{Name: "Shadow Kick", BaseCharacter: "Ryu"}, []int64{1}, "usr_owner", moderation.StatePendingHard)
	seedMoveset(t, fs, store.Moveset{Name: "Sun Punch", BaseCharacter: "Ken"}, []int64{2}, "usr_other", moderation.StateAccepted)

	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	tests := []struct {
		name  string
		token string
		want  []string
	}{
		{"anonymous sees only unblocked", "", []string{"Sun Punch"}},
		{"stranger modder sees only unblocked", tokenFor(t, svc, "usr_other"), []string{"Sun Punch"}},
		{"owner sees their pending item", tokenFor(t, svc, "usr_owner"), []string{"Shadow Kick", "Sun Punch"}},
		{"admin sees everything", tokenFor(t, svc, "usr_admin"), []string{"Shadow Kick", "Sun Punch"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, handler, http.MethodGet, "/api/movesets", tc.token, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
			}
			names := listedMovesetNames(t, rr)
			if len(names) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, names)
			}
			for i := range tc.want {
				if names[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, names)
				}
			}
		})
	}
}

func TestBlockedMovesetDetailForbiddenForStrangers(t *testing.T) {
	fs := newMemStore()
	seedUser(fs, "usr_owner", "modder", int64Ptr(1))
	seedUser(fs, "usr_other", "modder", int64Ptr(2))
	fs.modders[1] = store.Modder{ID: 1, Name: "Owner"}
	fs.modders[2] = store.Modder{ID: 2, Name: "Other"}
	fs.nextID = 2

	m := seedMoveset(t, fs, store.Moveset{Name: "Shadow Kick", BaseCharacter: "Ryu"}, []int64{1}, "usr_owner", moderation.StateRejected)
	path := "/api/movesets/" + strconv.FormatInt(m.ID, 10)

	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	rr := doRequest(t, handler, http.MethodGet, path, "", "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous, got %d", rr.Code)
	}

	rr = doRequest(t, handler, http.MethodGet, path, tokenFor(t, svc, "usr_other"), "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", rr.Code)
	}

	rr = doRequest(t, handler, http.MethodGet, path, tokenFor(t, svc, "usr_owner"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d body=%s", rr.Code, rr.Body.String())
	}
	view := parseBody(t, rr)
	if view["name"] != m.Name {
		t.Fatalf("expected unmasked name for owner, got %v", view["name"])
	}
}

func TestPrivateMovesetRedactedForStrangers(t *testing.T) {
	fs := newMemStore()
	seedUser(fs, "usr_owner", "modder", int64Ptr(1))
	seedUser(fs, "usr_other", "modder", int64Ptr(2))
	fs.modders[1] = store.Modder{ID: 1, Name: "Owner"}
	fs.modders[2] = store.Modder{ID: 2, Name: "Other"}
	fs.nextID = 2

	m := seedMoveset(t, fs, store.Moveset{
		Name:           "Secret Slam",
		BaseCharacter:  "Mario",
		SlottedID:      "c07",
		InfoURL:        "https://example.com/secret",
		ThumbImageURL:  "https://example.com/thumb.png",
		PrivateMoveset: true,
		PrivateModder:  true,
	}, []int64{1}, "usr_owner", moderation.StateAccepted)

	path := "/api/movesets/" + strconv.FormatInt(m.ID, 10)

	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	rr := doRequest(t, handler, http.MethodGet, path, tokenFor(t, svc, "usr_other"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	view := parseBody(t, rr)
	if view["name"] != moderation.Placeholder {
		t.Fatalf("expected masked name, got %v", view["name"])
	}
	if view["slottedId"] != moderation.Placeholder {
		t.Fatalf("expected masked slotted id, got %v", view["slottedId"])
	}
	if view["infoUrl"] != "" || view["thumbImageUrl"] != "" {
		t.Fatalf("expected cleared urls, got %v / %v", view["infoUrl"], view["thumbImageUrl"])
	}
	credits := view["modders"].([]any)
	if len(credits) != 1 {
		t.Fatalf("expected 1 credit, got %d", len(credits))
	}
	if credits[0].(map[string]any)["name"] != moderation.Placeholder {
		t.Fatalf("expected masked credit name, got %v", credits[0])
	}

	rr = doRequest(t, handler, http.MethodGet, path, tokenFor(t, svc, "usr_owner"), "")
	view = parseBody(t, rr)
	if view["name"] != "Secret Slam" {
		t.Fatalf("expected unmasked name for owner, got %v", view["name"])
	}
}

func TestMovesetReportStates(t *testing.T) {
	fs := newMemStore()
	seedUser(fs, "usr_owner", "modder", int64Ptr(1))
	fs.modders[1] = store.Modder{ID: 1, Name: "Owner"}
	fs.nextID = 1

	pending := seedMoveset(t, fs, store.Moveset{Name: "Shadow Kick", BaseCharacter: "Ryu"}, []int64{1}, "usr_owner", moderation.StatePendingHard)

	// A row with no history reports the implicit accepted state.
	legacy, err := fs.InsertMoveset(context.Background(), store.Moveset{Name: "Old Punch", BaseCharacter: "Ken"})
	if err != nil {
		t.Fatalf("insert moveset: %v", err)
	}

	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	rr := doRequest(t, handler, http.MethodGet, "/api/movesets/report", tokenFor(t, svc, "usr_owner"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rows, ok := parseBody(t, rr)["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("expected 2 report rows, got %v", rows)
	}

	want := map[string]float64{
		pending.Name: float64(moderation.StatePendingHard),
		legacy.Name:  float64(moderation.StateAccepted),
	}
	for _, raw := range rows {
		row := raw.(map[string]any)
		name := row["name"].(string)
		state, ok := row["state"].(float64)
		if !ok {
			t.Fatalf("expected numeric state for %q, got %v", name, row["state"])
		}
		if state != want[name] {
			t.Fatalf("expected state %v for %q, got %v", want[name], name, state)
		}
	}
}

func TestModderApplicationVisibleOnlyToSubmitterAndAdmin(t *testing.T) {
	fs := newMemStore()
	seedUser(fs, "usr_admin", "admin", nil)
	seedUser(fs, "usr_applicant", "guest", nil)
	seedUser(fs, "usr_other", "modder", int64Ptr(2))
	fs.modders[2] = store.Modder{ID: 2, Name: "Other"}
	fs.nextID = 2

	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	rr := doRequest(t, handler, http.MethodPost, "/api/modders", tokenFor(t, svc, "usr_applicant"), `{"name":"NewModder","bio":"hi"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	view := parseBody(t, rr)
	if view["state"] != float64(moderation.StatePendingHard) {
		t.Fatalf("expected pending-hard application, got %v", view["state"])
	}
	id := int64(view["id"].(float64))

	path := "/api/modders/" + strconv.FormatInt(id, 10)
	if rr := doRequest(t, handler, http.MethodGet, path, "", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous, got %d", rr.Code)
	}
	if rr := doRequest(t, handler, http.MethodGet, path, tokenFor(t, svc, "usr_other"), ""); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", rr.Code)
	}
	if rr := doRequest(t, handler, http.MethodGet, path, tokenFor(t, svc, "usr_applicant"), ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for submitter, got %d", rr.Code)
	}
	if rr := doRequest(t, handler, http.MethodGet, path, tokenFor(t, svc, "usr_admin"), ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rr.Code)
	}
}
