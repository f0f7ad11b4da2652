package app

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"movesethub/api/internal/moderation"
	"movesethub/api/internal/search"
	"movesethub/api/internal/store"
)

type MovesetInput struct {
	Name            string     `json:"name"`
	BaseCharacter   string     `json:"baseCharacter"`
	SeriesID        *int64     `json:"seriesId"`
	SlottedID       string     `json:"slottedId"`
	ReplacementID   string     `json:"replacementId"`
	InfoURL         string     `json:"infoUrl"`
	ReleaseDate     *time.Time `json:"releaseDate"`
	PrivateMoveset  bool       `json:"privateMoveset"`
	PrivateModder   bool       `json:"privateModder"`
	ModderIDs       []int64    `json:"modderIds"`
	Notes           string     `json:"notes"`
	ExpectedEventID *int64     `json:"expectedEventId"`
}

func (s *Service) ListMovesets(ctx context.Context, session Session, filter store.MovesetFilter) ([]map[string]any, error) {
	movesets, err := s.store.ListMovesets(ctx, filter)
	if err != nil {
		return nil, err
	}

	actor := session.Actor()
	items := make([]map[string]any, 0, len(movesets))
	for _, m := range movesets {
		history, err := s.store.ItemHistory(ctx, moderation.ItemMoveset, m.ID)
		if err != nil {
			return nil, err
		}
		visible, err := s.vis.CanSee(ctx, actor, moderation.ItemMoveset, m.ID, history)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		view, err := s.movesetView(ctx, actor, m, history)
		if err != nil {
			return nil, err
		}
		items = append(items, view)
	}
	return items, nil
}

// GetMoveset resolves a moveset by numeric id or by its slotted id.
func (s *Service) GetMoveset(ctx context.Context, session Session, ref string) (map[string]any, error) {
	var m store.Moveset
	var err error
	if id, parseErr := strconv.ParseInt(ref, 10, 64); parseErr == nil {
		m, err = s.store.GetMoveset(ctx, id)
	} else {
		m, err = s.store.GetMovesetBySlottedID(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	actor := session.Actor()
	history, err := s.store.ItemHistory(ctx, moderation.ItemMoveset, m.ID)
	if err != nil {
		return nil, err
	}
	visible, err := s.vis.CanSee(ctx, actor, moderation.ItemMoveset, m.ID, history)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "This moveset is not available", nil)
	}
	return s.movesetView(ctx, actor, m, history)
}

func (s *Service) CreateMoveset(ctx context.Context, session Session, input MovesetInput) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.BaseCharacter) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name and baseCharacter are required", nil)
	}

	actor := session.Actor()
	state, err := moderation.CreateState(actor)
	if err != nil {
		return nil, err
	}

	credits := input.ModderIDs
	if len(credits) == 0 && actor.ModderID != nil {
		credits = []int64{*actor.ModderID}
	}

	// The entity, its credits and its first event commit together: a failed
	// append must not leave an implicitly accepted moveset behind.
	m, err := s.store.CreateMovesetWithEvent(ctx, store.Moveset{
		Name:           strings.TrimSpace(input.Name),
		BaseCharacter:  strings.TrimSpace(input.BaseCharacter),
		SeriesID:       input.SeriesID,
		SlottedID:      strings.TrimSpace(input.SlottedID),
		ReplacementID:  strings.TrimSpace(input.ReplacementID),
		InfoURL:        input.InfoURL,
		ReleaseDate:    input.ReleaseDate,
		PrivateMoveset: input.PrivateMoveset,
		PrivateModder:  input.PrivateModder,
	}, credits, moderation.Event{
		ActorID:  actor.ID,
		ItemType: moderation.ItemMoveset,
		State:    state,
		Notes:    input.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.syncMovesetIndex(ctx, m)
	history, err := s.store.ItemHistory(ctx, moderation.ItemMoveset, m.ID)
	if err != nil {
		return nil, err
	}
	return s.movesetView(ctx, actor, m, history)
}

func (s *Service) UpdateMoveset(ctx context.Context, session Session, movesetID int64, input MovesetInput) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.BaseCharacter) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name and baseCharacter are required", nil)
	}

	m, err := s.store.GetMoveset(ctx, movesetID)
	if err != nil {
		return nil, err
	}

	actor := session.Actor()
	latest, err := s.store.LatestEvent(ctx, moderation.ItemMoveset, movesetID)
	if err != nil {
		return nil, err
	}
	isOwner, err := s.owners.IsOwner(ctx, actor, moderation.ItemMoveset, movesetID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	slotted := strings.TrimSpace(input.SlottedID)
	replacement := strings.TrimSpace(input.ReplacementID)
	keyFieldsChanged := name != m.Name || slotted != m.SlottedID || replacement != m.ReplacementID

	state, err := moderation.EditState(actor, moderation.EditInput{
		Current:          latest,
		IsOwner:          isOwner,
		KeyFieldsChanged: keyFieldsChanged,
	})
	if err != nil {
		return nil, err
	}

	expected := int64(0)
	if latest != nil {
		expected = latest.ID
	}
	if input.ExpectedEventID != nil {
		expected = *input.ExpectedEventID
	}

	m.Name = name
	m.BaseCharacter = strings.TrimSpace(input.BaseCharacter)
	m.SeriesID = input.SeriesID
	m.SlottedID = slotted
	m.ReplacementID = replacement
	m.InfoURL = input.InfoURL
	m.ReleaseDate = input.ReleaseDate
	m.PrivateMoveset = input.PrivateMoveset
	m.PrivateModder = input.PrivateModder

	// Append and entity write share one transaction and one optimistic check:
	// if another event lands between our read and this write, the whole edit
	// fails with a conflict and nothing changes.
	if err := s.store.UpdateMovesetWithEvent(ctx, m, input.ModderIDs, moderation.Event{
		ActorID:  actor.ID,
		ItemType: moderation.ItemMoveset,
		State:    state,
		Notes:    input.Notes,
	}, expected); err != nil {
		return nil, err
	}

	s.syncMovesetIndex(ctx, m)
	history, err := s.store.ItemHistory(ctx, moderation.ItemMoveset, movesetID)
	if err != nil {
		return nil, err
	}
	return s.movesetView(ctx, actor, m, history)
}

func (s *Service) DeleteMoveset(ctx context.Context, session Session, movesetID int64) error {
	if !session.Actor().IsAdmin() {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only administrators may delete movesets", nil)
	}
	if _, err := s.store.GetMoveset(ctx, movesetID); err != nil {
		return err
	}
	if err := s.store.DeleteMoveset(ctx, movesetID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteMoveset(movesetID)
	}
	return nil
}

// MovesetReport returns flat rows for every visible moveset, with the same
// redaction the list applies. Counts upstream are computed before masking.
func (s *Service) MovesetReport(ctx context.Context, session Session) ([]map[string]any, error) {
	movesets, err := s.store.ListMovesets(ctx, store.MovesetFilter{})
	if err != nil {
		return nil, err
	}

	actor := session.Actor()
	rows := make([]map[string]any, 0, len(movesets))
	for _, m := range movesets {
		history, err := s.store.ItemHistory(ctx, moderation.ItemMoveset, m.ID)
		if err != nil {
			return nil, err
		}
		visible, err := s.vis.CanSee(ctx, actor, moderation.ItemMoveset, m.ID, history)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		privileged, err := s.isAdminOrOwner(ctx, actor, moderation.ItemMoveset, m.ID)
		if err != nil {
			return nil, err
		}
		hidden := moderation.Redacted(m.PrivateMoveset, privileged)
		state := moderation.StateAccepted
		if current, ok := history.Current(); ok {
			state = current.State
		}
		rows = append(rows, map[string]any{
			"id":            m.ID,
			"name":          moderation.Mask(hidden, m.Name),
			"baseCharacter": m.BaseCharacter,
			"slottedId":     moderation.Mask(hidden, m.SlottedID),
			"replacementId": moderation.Mask(hidden, m.ReplacementID),
			"seriesId":      m.SeriesID,
			"adminPick":     m.AdminPick,
			"state":         int(state),
		})
	}
	return rows, nil
}

// SetAdminPicks replaces the featured set wholesale.
func (s *Service) SetAdminPicks(ctx context.Context, session Session, movesetIDs []int64) error {
	if !session.Actor().IsAdmin() {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only administrators may set picks", nil)
	}
	return s.store.SetAdminPicks(ctx, movesetIDs)
}

func (s *Service) movesetView(ctx context.Context, actor moderation.Actor, m store.Moveset, history moderation.History) (map[string]any, error) {
	privileged, err := s.isAdminOrOwner(ctx, actor, moderation.ItemMoveset, m.ID)
	if err != nil {
		return nil, err
	}
	hideMoveset := moderation.Redacted(m.PrivateMoveset, privileged)
	hideModders := moderation.Redacted(m.PrivateModder, privileged)

	credits, err := s.store.MovesetCredits(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	creditViews := make([]map[string]any, 0, len(credits))
	for _, credit := range credits {
		creditViews = append(creditViews, map[string]any{
			"modderId":  credit.ModderID,
			"name":      moderation.Mask(hideModders, credit.ModderName),
			"sortOrder": credit.SortOrder,
		})
	}

	view := map[string]any{
		"id":            m.ID,
		"name":          moderation.Mask(hideMoveset, m.Name),
		"baseCharacter": m.BaseCharacter,
		"seriesId":      m.SeriesID,
		"slottedId":     moderation.Mask(hideMoveset, m.SlottedID),
		"replacementId": moderation.Mask(hideMoveset, m.ReplacementID),
		"infoUrl":       moderation.MaskURL(hideMoveset, m.InfoURL),
		"thumbImageUrl": moderation.MaskURL(hideMoveset, m.ThumbImageURL),
		"heroImageUrl":  moderation.MaskURL(hideMoveset, m.HeroImageURL),
		"adminPick":     m.AdminPick,
		"modders":       creditViews,
		"updatedAt":     m.UpdatedAt,
	}
	if m.ReleaseDate != nil {
		view["releaseDate"] = m.ReleaseDate
	}
	if current, ok := history.Current(); ok {
		view["state"] = int(current.State)
	}
	if latest, ok := history.Latest(); ok {
		view["latestEventId"] = latest.ID
	}
	return view, nil
}

func (s *Service) isAdminOrOwner(ctx context.Context, actor moderation.Actor, itemType moderation.ItemType, itemID int64) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	return s.owners.IsOwner(ctx, actor, itemType, itemID)
}

// syncMovesetIndex keeps the search index aligned with public visibility:
// index when a logged-out visitor could see the moveset, remove otherwise.
func (s *Service) syncMovesetIndex(ctx context.Context, m store.Moveset) {
	if s.search == nil {
		return
	}
	history, err := s.store.ItemHistory(ctx, moderation.ItemMoveset, m.ID)
	if err != nil {
		return
	}
	public := !m.PrivateMoveset
	if latest, ok := history.Latest(); ok && latest.State.Blocked() {
		public = false
	}
	if !public {
		s.search.DeleteMoveset(m.ID)
		return
	}
	rec := search.MovesetRecord{
		ID:            m.ID,
		Name:          m.Name,
		BaseCharacter: m.BaseCharacter,
		SeriesID:      m.SeriesID,
	}
	if m.SeriesID != nil {
		if series, err := s.store.GetSeries(ctx, *m.SeriesID); err == nil {
			rec.SeriesName = series.Name
		}
	}
	s.search.IndexMoveset(rec)
}
