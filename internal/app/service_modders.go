package app

import (
	"context"
	"net/http"
	"strings"

	"movesethub/api/internal/moderation"
	"movesethub/api/internal/store"
)

type ModderInput struct {
	Name            string `json:"name"`
	Bio             string `json:"bio"`
	DiscordHandle   string `json:"discordHandle"`
	Notes           string `json:"notes"`
	ExpectedEventID *int64 `json:"expectedEventId"`
}

func (s *Service) ListModders(ctx context.Context, session Session) ([]map[string]any, error) {
	modders, err := s.store.ListModders(ctx)
	if err != nil {
		return nil, err
	}

	actor := session.Actor()
	items := make([]map[string]any, 0, len(modders))
	for _, m := range modders {
		history, err := s.store.ItemHistory(ctx, moderation.ItemModder, m.ID)
		if err != nil {
			return nil, err
		}
		visible, err := s.vis.CanSee(ctx, actor, moderation.ItemModder, m.ID, history)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		items = append(items, modderView(m, history))
	}
	return items, nil
}

func (s *Service) GetModder(ctx context.Context, session Session, modderID int64) (map[string]any, error) {
	m, err := s.store.GetModder(ctx, modderID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ItemHistory(ctx, moderation.ItemModder, m.ID)
	if err != nil {
		return nil, err
	}
	visible, err := s.vis.CanSee(ctx, session.Actor(), moderation.ItemModder, m.ID, history)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "This modder page is not available", nil)
	}
	return modderView(m, history), nil
}

// ApplyModder records a modder page application. Unlike other items, any
// signed-in user may apply: this is the path by which a guest becomes a
// modder. The page stays hard pending (and owned by the applicant through the
// submitter rule) until an admin approves it.
func (s *Service) ApplyModder(ctx context.Context, session Session, input ModderInput) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if session.UserID == "" {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to apply", nil)
	}

	actor := session.Actor()
	state := moderation.StatePendingHard
	if actor.IsAdmin() {
		state = moderation.StateAdminOverride
	}

	m, err := s.store.CreateModderWithEvent(ctx, store.Modder{
		Name:          strings.TrimSpace(input.Name),
		Bio:           input.Bio,
		DiscordHandle: strings.TrimSpace(input.DiscordHandle),
	}, moderation.Event{
		ActorID:  actor.ID,
		ItemType: moderation.ItemModder,
		State:    state,
		Notes:    input.Notes,
	})
	if err != nil {
		return nil, err
	}

	history, err := s.store.ItemHistory(ctx, moderation.ItemModder, m.ID)
	if err != nil {
		return nil, err
	}
	return modderView(m, history), nil
}

func (s *Service) UpdateModder(ctx context.Context, session Session, modderID int64, input ModderInput) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	m, err := s.store.GetModder(ctx, modderID)
	if err != nil {
		return nil, err
	}

	actor := session.Actor()
	latest, err := s.store.LatestEvent(ctx, moderation.ItemModder, modderID)
	if err != nil {
		return nil, err
	}
	isOwner, err := s.owners.IsOwner(ctx, actor, moderation.ItemModder, modderID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	state, err := moderation.EditState(actor, moderation.EditInput{
		Current:          latest,
		IsOwner:          isOwner,
		KeyFieldsChanged: name != m.Name,
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
	m.Bio = input.Bio
	m.DiscordHandle = strings.TrimSpace(input.DiscordHandle)
	if err := s.store.UpdateModderWithEvent(ctx, m, moderation.Event{
		ActorID:  actor.ID,
		ItemType: moderation.ItemModder,
		State:    state,
		Notes:    input.Notes,
	}, expected); err != nil {
		return nil, err
	}

	history, err := s.store.ItemHistory(ctx, moderation.ItemModder, modderID)
	if err != nil {
		return nil, err
	}
	return modderView(m, history), nil
}

func (s *Service) DeleteModder(ctx context.Context, session Session, modderID int64) error {
	if !session.Actor().IsAdmin() {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only administrators may delete modders", nil)
	}
	if _, err := s.store.GetModder(ctx, modderID); err != nil {
		return err
	}
	return s.store.DeleteModder(ctx, modderID)
}

func modderView(m store.Modder, history moderation.History) map[string]any {
	view := map[string]any{
		"id":            m.ID,
		"name":          m.Name,
		"bio":           m.Bio,
		"discordHandle": m.DiscordHandle,
		"linked":        m.UserID != nil,
	}
	if current, ok := history.Current(); ok {
		view["state"] = int(current.State)
	}
	if latest, ok := history.Latest(); ok {
		view["latestEventId"] = latest.ID
	}
	return view
}
