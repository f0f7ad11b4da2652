package app

import (
	"context"
	"net/http"
	"time"

	"movesethub/api/internal/moderation"
	"movesethub/api/internal/store"
)

type DecisionInput struct {
	ItemType        int    `json:"itemType"`
	ItemID          int64  `json:"itemId"`
	State           int    `json:"state"`
	Notes           string `json:"notes"`
	ExpectedEventID *int64 `json:"expectedEventId"`
}

const defaultLogLimit = 100

// ListLogs returns recent moderation events. Admins see everything and may
// scope to any user with forUserID; everyone else only ever sees their own
// scope regardless of the parameter.
func (s *Service) ListLogs(ctx context.Context, session Session, forUserID string, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultLogLimit
	}
	actor := session.Actor()

	if actor.IsAdmin() {
		if forUserID == "" {
			entries, err := s.store.ListEvents(ctx, limit)
			if err != nil {
				return nil, err
			}
			return logViews(entries), nil
		}
		target, err := s.store.GetUserByID(ctx, forUserID)
		if err != nil {
			return nil, err
		}
		entries, err := s.store.ListEventsForUser(ctx, target, limit)
		if err != nil {
			return nil, err
		}
		return logViews(entries), nil
	}

	if session.UserID == "" {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to view your log", nil)
	}
	self, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEventsForUser(ctx, self, limit)
	if err != nil {
		return nil, err
	}
	return logViews(entries), nil
}

// GetLogEntry returns one event. Non-admins may only read events they acted
// in or events on items they own.
func (s *Service) GetLogEntry(ctx context.Context, session Session, eventID int64) (map[string]any, error) {
	entry, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	actor := session.Actor()
	if !actor.IsAdmin() && entry.ActorID != session.UserID {
		owner, err := s.owners.IsOwner(ctx, actor, entry.ItemType, entry.ItemID)
		if err != nil {
			return nil, err
		}
		if !owner {
			return nil, domainError(http.StatusForbidden, "FORBIDDEN", "This log entry is not available", nil)
		}
	}
	return logView(entry), nil
}

// GetItemHistory returns the full event log for one item, oldest first.
func (s *Service) GetItemHistory(ctx context.Context, session Session, itemType moderation.ItemType, itemID int64) ([]map[string]any, error) {
	if !itemType.Valid() {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown item type", nil)
	}
	history, err := s.store.ItemHistory(ctx, itemType, itemID)
	if err != nil {
		return nil, err
	}
	visible, err := s.vis.CanSee(ctx, session.Actor(), itemType, itemID, history)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "This item is not available", nil)
	}

	views := make([]map[string]any, 0, len(history))
	for _, ev := range history {
		views = append(views, eventView(ev))
	}
	return views, nil
}

// GetItemState reports the resting state of one item: the newest event with
// the approving trigger skipped, or implicit acceptance for items with no
// history.
func (s *Service) GetItemState(ctx context.Context, session Session, itemType moderation.ItemType, itemID int64) (map[string]any, error) {
	if !itemType.Valid() {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown item type", nil)
	}
	history, err := s.store.ItemHistory(ctx, itemType, itemID)
	if err != nil {
		return nil, err
	}
	visible, err := s.vis.CanSee(ctx, session.Actor(), itemType, itemID, history)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "This item is not available", nil)
	}

	view := map[string]any{
		"itemType": int(itemType),
		"itemId":   itemID,
		"state":    int(moderation.StateAccepted),
		"implicit": true,
	}
	if current, ok := history.Current(); ok {
		view["state"] = int(current.State)
		view["stateName"] = current.State.String()
		view["implicit"] = false
		view["eventId"] = current.ID
	} else {
		view["stateName"] = moderation.StateAccepted.String()
	}
	if latest, ok := history.Latest(); ok {
		view["latestEventId"] = latest.ID
	}
	return view, nil
}

// Decide records an explicit admin moderation decision. An approving decision
// on a modder application also performs the one-time promotion of the
// original submitter, atomically with the event append.
func (s *Service) Decide(ctx context.Context, session Session, input DecisionInput) (map[string]any, error) {
	itemType := moderation.ItemType(input.ItemType)
	if !itemType.Valid() {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown item type", nil)
	}

	actor := session.Actor()
	state, err := moderation.DecisionState(actor, moderation.State(input.State))
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestEvent(ctx, itemType, input.ItemID)
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

	ev := moderation.Event{
		ActorID:  actor.ID,
		ItemType: itemType,
		ItemID:   input.ItemID,
		State:    state,
		Notes:    input.Notes,
	}

	var appended moderation.Event
	if moderation.PromotesModder(itemType, state) {
		appended, err = s.store.AppendModderDecision(ctx, ev, expected)
	} else {
		appended, err = s.store.AppendEvent(ctx, ev, expected)
	}
	if err != nil {
		return nil, err
	}

	if itemType == moderation.ItemMoveset {
		if m, err := s.store.GetMoveset(ctx, input.ItemID); err == nil {
			s.syncMovesetIndex(ctx, m)
		}
	}
	return eventView(appended), nil
}

func logViews(entries []store.LogEntry) []map[string]any {
	views := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		views = append(views, logView(entry))
	}
	return views
}

func logView(entry store.LogEntry) map[string]any {
	view := eventView(entry.Event)
	view["actorName"] = entry.ActorName
	view["itemName"] = entry.ItemName
	return view
}

func eventView(ev moderation.Event) map[string]any {
	return map[string]any{
		"id":        ev.ID,
		"actorId":   ev.ActorID,
		"itemType":  int(ev.ItemType),
		"itemId":    ev.ItemID,
		"state":     int(ev.State),
		"stateName": ev.State.String(),
		"notes":     ev.Notes,
		"createdAt": ev.CreatedAt.UTC().Format(time.RFC3339),
	}
}
