package app

import (
	"context"
	"net/http"
	"strings"

	"movesethub/api/internal/moderation"
	"movesethub/api/internal/store"
)

type SeriesInput struct {
	Name            string `json:"name"`
	IconURL         string `json:"iconUrl"`
	Notes           string `json:"notes"`
	ExpectedEventID *int64 `json:"expectedEventId"`
}

func (s *Service) ListSeries(ctx context.Context, session Session) ([]map[string]any, error) {
	series, err := s.store.ListSeries(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.SeriesMovesetCounts(ctx)
	if err != nil {
		return nil, err
	}
	countByID := make(map[int64]int, len(counts))
	for _, c := range counts {
		countByID[c.SeriesID] = c.Count
	}

	actor := session.Actor()
	items := make([]map[string]any, 0, len(series))
	for _, sr := range series {
		history, err := s.store.ItemHistory(ctx, moderation.ItemSeries, sr.ID)
		if err != nil {
			return nil, err
		}
		visible, err := s.vis.CanSee(ctx, actor, moderation.ItemSeries, sr.ID, history)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		canEdit, err := s.isAdminOrOwner(ctx, actor, moderation.ItemSeries, sr.ID)
		if err != nil {
			return nil, err
		}
		view := seriesView(sr, history)
		view["movesetCount"] = countByID[sr.ID]
		view["canEdit"] = canEdit
		items = append(items, view)
	}
	return items, nil
}

func (s *Service) GetSeries(ctx context.Context, session Session, seriesID int64) (map[string]any, error) {
	sr, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ItemHistory(ctx, moderation.ItemSeries, sr.ID)
	if err != nil {
		return nil, err
	}
	actor := session.Actor()
	visible, err := s.vis.CanSee(ctx, actor, moderation.ItemSeries, sr.ID, history)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "This series is not available", nil)
	}
	count, err := s.store.SeriesMovesetCount(ctx, sr.ID)
	if err != nil {
		return nil, err
	}
	canEdit, err := s.isAdminOrOwner(ctx, actor, moderation.ItemSeries, sr.ID)
	if err != nil {
		return nil, err
	}
	view := seriesView(sr, history)
	view["movesetCount"] = count
	view["canEdit"] = canEdit
	return view, nil
}

func (s *Service) CreateSeries(ctx context.Context, session Session, input SeriesInput) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	actor := session.Actor()
	state, err := moderation.CreateState(actor)
	if err != nil {
		return nil, err
	}

	sr, err := s.store.CreateSeriesWithEvent(ctx, store.Series{
		Name:    strings.TrimSpace(input.Name),
		IconURL: input.IconURL,
	}, moderation.Event{
		ActorID:  actor.ID,
		ItemType: moderation.ItemSeries,
		State:    state,
		Notes:    input.Notes,
	})
	if err != nil {
		return nil, err
	}

	history, err := s.store.ItemHistory(ctx, moderation.ItemSeries, sr.ID)
	if err != nil {
		return nil, err
	}
	return seriesView(sr, history), nil
}

func (s *Service) UpdateSeries(ctx context.Context, session Session, seriesID int64, input SeriesInput) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	sr, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	actor := session.Actor()
	latest, err := s.store.LatestEvent(ctx, moderation.ItemSeries, seriesID)
	if err != nil {
		return nil, err
	}
	// Ownership includes the bootstrap rule: an empty series is editable by
	// any modder.
	isOwner, err := s.owners.IsOwner(ctx, actor, moderation.ItemSeries, seriesID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	state, err := moderation.EditState(actor, moderation.EditInput{
		Current:          latest,
		IsOwner:          isOwner,
		KeyFieldsChanged: name != sr.Name,
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

	sr.Name = name
	sr.IconURL = input.IconURL
	if err := s.store.UpdateSeriesWithEvent(ctx, sr, moderation.Event{
		ActorID:  actor.ID,
		ItemType: moderation.ItemSeries,
		State:    state,
		Notes:    input.Notes,
	}, expected); err != nil {
		return nil, err
	}

	history, err := s.store.ItemHistory(ctx, moderation.ItemSeries, seriesID)
	if err != nil {
		return nil, err
	}
	return seriesView(sr, history), nil
}

func (s *Service) DeleteSeries(ctx context.Context, session Session, seriesID int64) error {
	if !session.Actor().IsAdmin() {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only administrators may delete series", nil)
	}
	if _, err := s.store.GetSeries(ctx, seriesID); err != nil {
		return err
	}
	return s.store.DeleteSeries(ctx, seriesID)
}

func seriesView(sr store.Series, history moderation.History) map[string]any {
	view := map[string]any{
		"id":      sr.ID,
		"name":    sr.Name,
		"iconUrl": sr.IconURL,
	}
	if current, ok := history.Current(); ok {
		view["state"] = int(current.State)
	}
	if latest, ok := history.Latest(); ok {
		view["latestEventId"] = latest.ID
	}
	return view
}
