package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// It only matches movesets a logged-out visitor could see: not private, and
// with a current moderation state that is not blocked.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const publicMovesetWhere = `
	m.private_moveset = FALSE
	AND COALESCE((
		SELECT e.state FROM moderation_events e
		WHERE e.item_type = 1 AND e.item_id = m.id
		ORDER BY e.id DESC
		LIMIT 1
	), 1) NOT IN (2, 4, 6)
`

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsVector = `to_tsvector('english', m.name || ' ' || m.base_character || ' ' || COALESCE(s.name, ''))`
	const tsQuery = `plainto_tsquery('english', $1)`

	where := tsVector + " @@ " + tsQuery + " AND " + publicMovesetWhere
	args := []any{q.Text}
	if q.SeriesID != nil {
		where += fmt.Sprintf(" AND m.series_id = $%d", len(args)+1)
		args = append(args, *q.SeriesID)
	}

	base := fmt.Sprintf(`
		FROM movesets m
		LEFT JOIN series s ON s.id = m.series_id
		WHERE %s`, where)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT m.id, m.name, m.base_character,
			ts_headline('english', m.name, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			m.series_id, COALESCE(s.name, '')
		%s
		ORDER BY ts_rank(%s, %s) DESC
		LIMIT %d OFFSET %d`, tsQuery, base, tsVector, tsQuery, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.BaseCharacter, &r.Snippet, &r.SeriesID, &r.SeriesName); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadPublicRecords returns every publicly visible moveset for reindexing.
func (p *PgFTS) LoadPublicRecords(ctx context.Context) ([]MovesetRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT m.id, m.name, m.base_character, m.series_id, COALESCE(s.name, '')
		FROM movesets m
		LEFT JOIN series s ON s.id = m.series_id
		WHERE `+publicMovesetWhere)
	if err != nil {
		return nil, fmt.Errorf("load public movesets: %w", err)
	}
	defer rows.Close()

	records := make([]MovesetRecord, 0)
	for rows.Next() {
		var rec MovesetRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.BaseCharacter, &rec.SeriesID, &rec.SeriesName); err != nil {
			return nil, fmt.Errorf("scan public moveset: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate public movesets: %w", err)
	}
	return records, nil
}
