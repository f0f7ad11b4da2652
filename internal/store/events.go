package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"movesethub/api/internal/moderation"
)

// ErrStaleState is returned when an append's expected latest event id no
// longer matches the log: someone else recorded an event for the item between
// the caller's read and its write.
var ErrStaleState = errors.New("item state changed since it was read")

const logItemName = `
	COALESCE(CASE e.item_type
		WHEN 1 THEN (SELECT name FROM movesets WHERE id = e.item_id)
		WHEN 2 THEN (SELECT name FROM modders WHERE id = e.item_id)
		WHEN 3 THEN (SELECT name FROM series WHERE id = e.item_id)
	END, '')
`

// ItemHistory implements moderation.Directory: every event for one item,
// ordered by id.
func (s *PostgresStore) ItemHistory(ctx context.Context, itemType moderation.ItemType, itemID int64) (moderation.History, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, item_type, item_id, state, notes, created_at
		FROM moderation_events
		WHERE item_type=$1 AND item_id=$2
		ORDER BY id ASC
	`, itemType, itemID)
	if err != nil {
		return nil, fmt.Errorf("item history: %w", err)
	}
	defer rows.Close()

	history := make(moderation.History, 0)
	for rows.Next() {
		var ev moderation.Event
		if err := rows.Scan(&ev.ID, &ev.ActorID, &ev.ItemType, &ev.ItemID, &ev.State, &ev.Notes, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		history = append(history, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return history, nil
}

// LatestEvent returns the newest event for an item, or nil when the item has
// no history yet.
func (s *PostgresStore) LatestEvent(ctx context.Context, itemType moderation.ItemType, itemID int64) (*moderation.Event, error) {
	var ev moderation.Event
	err := s.db.QueryRowContext(ctx, `
		SELECT id, actor_id, item_type, item_id, state, notes, created_at
		FROM moderation_events
		WHERE item_type=$1 AND item_id=$2
		ORDER BY id DESC
		LIMIT 1
	`, itemType, itemID).Scan(&ev.ID, &ev.ActorID, &ev.ItemType, &ev.ItemID, &ev.State, &ev.Notes, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest event: %w", err)
	}
	return &ev, nil
}

// AppendEvent records an event. expectedLatestID must equal the id of the
// item's newest event at write time (0 for an item with no history); the check
// and the insert share one transaction, and a mismatch returns ErrStaleState
// with nothing written.
func (s *PostgresStore) AppendEvent(ctx context.Context, ev moderation.Event, expectedLatestID int64) (moderation.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return moderation.Event{}, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	appended, err := appendEventTx(ctx, tx, ev, expectedLatestID)
	if err != nil {
		return moderation.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return moderation.Event{}, fmt.Errorf("commit append: %w", err)
	}
	return appended, nil
}

// AppendModderDecision records an admin decision on a modder application and,
// when the decision is the approving trigger, performs the one-time promotion
// in the same transaction: the application's original submitter gets linked to
// the modder profile and upgraded out of the guest role. A submitter who is
// already linked elsewhere keeps their existing link.
func (s *PostgresStore) AppendModderDecision(ctx context.Context, ev moderation.Event, expectedLatestID int64) (moderation.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return moderation.Event{}, fmt.Errorf("begin decision tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	appended, err := appendEventTx(ctx, tx, ev, expectedLatestID)
	if err != nil {
		return moderation.Event{}, err
	}

	if moderation.PromotesModder(ev.ItemType, ev.State) {
		if err := promoteSubmitterTx(ctx, tx, ev.ItemID); err != nil {
			return moderation.Event{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return moderation.Event{}, fmt.Errorf("commit decision: %w", err)
	}
	return appended, nil
}

// CreateMovesetWithEvent inserts a moveset, its credits and its first log
// entry in one transaction, so a failed append leaves no half-created item
// behind.
func (s *PostgresStore) CreateMovesetWithEvent(ctx context.Context, item Moveset, modderIDs []int64, ev moderation.Event) (Moveset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Moveset{}, fmt.Errorf("begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	item, err = insertMovesetTx(ctx, tx, item)
	if err != nil {
		return Moveset{}, err
	}
	if len(modderIDs) > 0 {
		if err := setMovesetModdersTx(ctx, tx, item.ID, modderIDs); err != nil {
			return Moveset{}, err
		}
	}
	ev.ItemID = item.ID
	if _, err := appendEventTx(ctx, tx, ev, 0); err != nil {
		return Moveset{}, err
	}
	if err := tx.Commit(); err != nil {
		return Moveset{}, fmt.Errorf("commit create: %w", err)
	}
	return item, nil
}

// UpdateMovesetWithEvent appends the edit's event and applies the entity
// changes in one transaction. A nil modderIDs keeps the current credits. On
// ErrStaleState nothing is written.
func (s *PostgresStore) UpdateMovesetWithEvent(ctx context.Context, item Moveset, modderIDs []int64, ev moderation.Event, expectedLatestID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ev.ItemID = item.ID
	if _, err := appendEventTx(ctx, tx, ev, expectedLatestID); err != nil {
		return err
	}
	if err := updateMovesetTx(ctx, tx, item); err != nil {
		return err
	}
	if modderIDs != nil {
		if err := setMovesetModdersTx(ctx, tx, item.ID, modderIDs); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateModderWithEvent(ctx context.Context, item Modder, ev moderation.Event) (Modder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Modder{}, fmt.Errorf("begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	item, err = insertModderTx(ctx, tx, item)
	if err != nil {
		return Modder{}, err
	}
	ev.ItemID = item.ID
	if _, err := appendEventTx(ctx, tx, ev, 0); err != nil {
		return Modder{}, err
	}
	if err := tx.Commit(); err != nil {
		return Modder{}, fmt.Errorf("commit create: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateModderWithEvent(ctx context.Context, item Modder, ev moderation.Event, expectedLatestID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ev.ItemID = item.ID
	if _, err := appendEventTx(ctx, tx, ev, expectedLatestID); err != nil {
		return err
	}
	if err := updateModderTx(ctx, tx, item); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSeriesWithEvent(ctx context.Context, item Series, ev moderation.Event) (Series, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Series{}, fmt.Errorf("begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	item, err = insertSeriesTx(ctx, tx, item)
	if err != nil {
		return Series{}, err
	}
	ev.ItemID = item.ID
	if _, err := appendEventTx(ctx, tx, ev, 0); err != nil {
		return Series{}, err
	}
	if err := tx.Commit(); err != nil {
		return Series{}, fmt.Errorf("commit create: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateSeriesWithEvent(ctx context.Context, item Series, ev moderation.Event, expectedLatestID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ev.ItemID = item.ID
	if _, err := appendEventTx(ctx, tx, ev, expectedLatestID); err != nil {
		return err
	}
	if err := updateSeriesTx(ctx, tx, item); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func appendEventTx(ctx context.Context, tx *sql.Tx, ev moderation.Event, expectedLatestID int64) (moderation.Event, error) {
	// Appends to one item's log must serialize through an advisory lock. Row
	// locks cannot do it: the first event has no row to lock, and a writer
	// unblocked by a row lock keeps the snapshot it took before blocking and
	// never sees the newly inserted event.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, eventLockKey(ev.ItemType, ev.ItemID)); err != nil {
		return moderation.Event{}, fmt.Errorf("lock item log: %w", err)
	}

	var latestID int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM moderation_events
		WHERE item_type=$1 AND item_id=$2
		ORDER BY id DESC
		LIMIT 1
	`, ev.ItemType, ev.ItemID).Scan(&latestID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return moderation.Event{}, fmt.Errorf("read latest event: %w", err)
	}
	if latestID != expectedLatestID {
		return moderation.Event{}, ErrStaleState
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO moderation_events (actor_id, item_type, item_id, state, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, ev.ActorID, ev.ItemType, ev.ItemID, ev.State, ev.Notes).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return moderation.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

// eventLockKey folds (item_type, item_id) into the single bigint key space of
// pg_advisory_xact_lock. Item ids come from bigserial columns and stay far
// below 2^56.
func eventLockKey(itemType moderation.ItemType, itemID int64) int64 {
	return int64(itemType)<<56 | itemID
}

func promoteSubmitterTx(ctx context.Context, tx *sql.Tx, modderID int64) error {
	var submitterID string
	err := tx.QueryRowContext(ctx, `
		SELECT actor_id FROM moderation_events
		WHERE item_type=$1 AND item_id=$2
		ORDER BY id ASC
		LIMIT 1
	`, moderation.ItemModder, modderID).Scan(&submitterID)
	if err != nil {
		return fmt.Errorf("find application submitter: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET modder_id=$2,
			role=CASE WHEN role='guest' THEN 'modder' ELSE role END,
			updated_at=NOW()
		WHERE id=$1 AND modder_id IS NULL
	`, submitterID, modderID)
	if err != nil {
		return fmt.Errorf("link submitter: %w", err)
	}
	linked, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("link submitter rows: %w", err)
	}
	if linked == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE modders
		SET user_id=$2, updated_at=NOW()
		WHERE id=$1 AND user_id IS NULL
	`, modderID, submitterID); err != nil {
		return fmt.Errorf("link modder profile: %w", err)
	}
	return nil
}

// GetEvent returns one event with its display names.
func (s *PostgresStore) GetEvent(ctx context.Context, eventID int64) (LogEntry, error) {
	var entry LogEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.actor_id, e.item_type, e.item_id, e.state, e.notes, e.created_at,
			COALESCE(u.display_name, ''), `+logItemName+`
		FROM moderation_events e
		LEFT JOIN users u ON u.id = e.actor_id
		WHERE e.id=$1
	`, eventID).Scan(&entry.ID, &entry.ActorID, &entry.ItemType, &entry.ItemID, &entry.State, &entry.Notes, &entry.CreatedAt, &entry.ActorName, &entry.ItemName)
	if err != nil {
		return LogEntry{}, err
	}
	return entry, nil
}

// ListEvents returns the newest events across all items.
func (s *PostgresStore) ListEvents(ctx context.Context, limit int) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.actor_id, e.item_type, e.item_id, e.state, e.notes, e.created_at,
			COALESCE(u.display_name, ''), `+logItemName+`
		FROM moderation_events e
		LEFT JOIN users u ON u.id = e.actor_id
		ORDER BY e.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

// ListEventsForUser returns the newest events the given user is entitled to:
// events they acted in themselves, events on their modder profile, and events
// on their movesets and the series those movesets belong to.
func (s *PostgresStore) ListEventsForUser(ctx context.Context, user User, limit int) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.actor_id, e.item_type, e.item_id, e.state, e.notes, e.created_at,
			COALESCE(u.display_name, ''), `+logItemName+`
		FROM moderation_events e
		LEFT JOIN users u ON u.id = e.actor_id
		WHERE e.actor_id = $1
		   OR ($2::bigint IS NOT NULL AND (
				(e.item_type = 2 AND e.item_id = $2)
			 OR (e.item_type = 1 AND e.item_id IN (
					SELECT moveset_id FROM moveset_modders WHERE modder_id = $2))
			 OR (e.item_type = 3 AND e.item_id IN (
					SELECT m.series_id FROM movesets m
					JOIN moveset_modders mm ON mm.moveset_id = m.id
					WHERE mm.modder_id = $2 AND m.series_id IS NOT NULL))
		   ))
		ORDER BY e.id DESC
		LIMIT $3
	`, user.ID, user.ModderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user events: %w", err)
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

func scanLogEntries(rows *sql.Rows) ([]LogEntry, error) {
	items := make([]LogEntry, 0)
	for rows.Next() {
		var entry LogEntry
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ItemType, &entry.ItemID, &entry.State, &entry.Notes, &entry.CreatedAt, &entry.ActorName, &entry.ItemName); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return items, nil
}
