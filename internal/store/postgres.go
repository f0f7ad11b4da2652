package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, LOWER($3), $4, $5)
		RETURNING created_at, updated_at
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, modder_id, created_at, updated_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.ModderID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, modder_id, created_at, updated_at
		FROM users
		WHERE email=LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.ModderID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) ListModders(ctx context.Context) ([]Modder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, bio, discord_handle, user_id, created_at, updated_at
		FROM modders
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list modders: %w", err)
	}
	defer rows.Close()

	items := make([]Modder, 0)
	for rows.Next() {
		var item Modder
		if err := rows.Scan(&item.ID, &item.Name, &item.Bio, &item.DiscordHandle, &item.UserID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan modder: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modders: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetModder(ctx context.Context, modderID int64) (Modder, error) {
	var item Modder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, bio, discord_handle, user_id, created_at, updated_at
		FROM modders
		WHERE id=$1
	`, modderID).Scan(&item.ID, &item.Name, &item.Bio, &item.DiscordHandle, &item.UserID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Modder{}, err
	}
	return item, nil
}

func insertModderTx(ctx context.Context, tx *sql.Tx, item Modder) (Modder, error) {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO modders (name, bio, discord_handle, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, item.Name, item.Bio, item.DiscordHandle, item.UserID).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Modder{}, fmt.Errorf("insert modder: %w", err)
	}
	return item, nil
}

func updateModderTx(ctx context.Context, tx *sql.Tx, item Modder) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE modders
		SET name=$2, bio=$3, discord_handle=$4, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Name, item.Bio, item.DiscordHandle)
	if err != nil {
		return fmt.Errorf("update modder: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteModder(ctx context.Context, modderID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM modders WHERE id=$1`, modderID)
	if err != nil {
		return fmt.Errorf("delete modder: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMovesets(ctx context.Context, filter MovesetFilter) ([]Moveset, error) {
	// private-last so public rows lead list responses
	query := `
		SELECT DISTINCT m.id, m.name, m.base_character, m.series_id, m.slotted_id, m.replacement_id,
			m.info_url, m.release_date, m.admin_pick, m.private_moveset, m.private_modder,
			m.thumb_image_url, m.hero_image_url, m.created_at, m.updated_at
		FROM movesets m
		LEFT JOIN moveset_modders mm ON mm.moveset_id = m.id
		WHERE ($1::bigint IS NULL OR m.series_id = $1)
		  AND ($2::bigint IS NULL OR mm.modder_id = $2)
		  AND (NOT $3::boolean OR m.private_moveset)
		  AND (NOT $4::boolean OR m.admin_pick)
		ORDER BY m.private_moveset ASC, m.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, filter.SeriesID, filter.ModderID, filter.PrivateOnly, filter.AdminPickOnly)
	if err != nil {
		return nil, fmt.Errorf("list movesets: %w", err)
	}
	defer rows.Close()

	items := make([]Moveset, 0)
	for rows.Next() {
		var item Moveset
		if err := scanMoveset(rows.Scan, &item); err != nil {
			return nil, fmt.Errorf("scan moveset: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movesets: %w", err)
	}
	return items, nil
}

func scanMoveset(scan func(...any) error, item *Moveset) error {
	return scan(
		&item.ID,
		&item.Name,
		&item.BaseCharacter,
		&item.SeriesID,
		&item.SlottedID,
		&item.ReplacementID,
		&item.InfoURL,
		&item.ReleaseDate,
		&item.AdminPick,
		&item.PrivateMoveset,
		&item.PrivateModder,
		&item.ThumbImageURL,
		&item.HeroImageURL,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}

const movesetColumns = `
	id, name, base_character, series_id, slotted_id, replacement_id,
	info_url, release_date, admin_pick, private_moveset, private_modder,
	thumb_image_url, hero_image_url, created_at, updated_at
`

func (s *PostgresStore) GetMoveset(ctx context.Context, movesetID int64) (Moveset, error) {
	var item Moveset
	row := s.db.QueryRowContext(ctx, `SELECT `+movesetColumns+` FROM movesets WHERE id=$1`, movesetID)
	if err := scanMoveset(row.Scan, &item); err != nil {
		return Moveset{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetMovesetBySlottedID(ctx context.Context, slottedID string) (Moveset, error) {
	var item Moveset
	row := s.db.QueryRowContext(ctx, `SELECT `+movesetColumns+` FROM movesets WHERE slotted_id=$1`, slottedID)
	if err := scanMoveset(row.Scan, &item); err != nil {
		return Moveset{}, err
	}
	return item, nil
}

func insertMovesetTx(ctx context.Context, tx *sql.Tx, item Moveset) (Moveset, error) {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO movesets (name, base_character, series_id, slotted_id, replacement_id,
			info_url, release_date, admin_pick, private_moveset, private_modder,
			thumb_image_url, hero_image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, item.Name, item.BaseCharacter, item.SeriesID, item.SlottedID, item.ReplacementID,
		item.InfoURL, item.ReleaseDate, item.AdminPick, item.PrivateMoveset, item.PrivateModder,
		item.ThumbImageURL, item.HeroImageURL).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Moveset{}, fmt.Errorf("insert moveset: %w", err)
	}
	return item, nil
}

func updateMovesetTx(ctx context.Context, tx *sql.Tx, item Moveset) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE movesets
		SET name=$2, base_character=$3, series_id=$4, slotted_id=$5, replacement_id=$6,
			info_url=$7, release_date=$8, admin_pick=$9, private_moveset=$10, private_modder=$11,
			thumb_image_url=$12, hero_image_url=$13, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Name, item.BaseCharacter, item.SeriesID, item.SlottedID, item.ReplacementID,
		item.InfoURL, item.ReleaseDate, item.AdminPick, item.PrivateMoveset, item.PrivateModder,
		item.ThumbImageURL, item.HeroImageURL)
	if err != nil {
		return fmt.Errorf("update moveset: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMoveset(ctx context.Context, movesetID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM movesets WHERE id=$1`, movesetID)
	if err != nil {
		return fmt.Errorf("delete moveset: %w", err)
	}
	return nil
}

// SetAdminPicks replaces the admin-pick flag across the whole table: the given
// ids are picked, everything else is cleared.
func (s *PostgresStore) SetAdminPicks(ctx context.Context, movesetIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admin picks tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE movesets SET admin_pick=FALSE WHERE admin_pick`); err != nil {
		return fmt.Errorf("clear admin picks: %w", err)
	}
	if len(movesetIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE movesets SET admin_pick=TRUE WHERE id = ANY($1)`, int64Array(movesetIDs)); err != nil {
			return fmt.Errorf("set admin picks: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit admin picks: %w", err)
	}
	return nil
}

// setMovesetModdersTx replaces the credit list of a moveset, preserving the
// given order.
func setMovesetModdersTx(ctx context.Context, tx *sql.Tx, movesetID int64, modderIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM moveset_modders WHERE moveset_id=$1`, movesetID); err != nil {
		return fmt.Errorf("clear credits: %w", err)
	}
	for i, modderID := range modderIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO moveset_modders (moveset_id, modder_id, sort_order)
			VALUES ($1, $2, $3)
		`, movesetID, modderID, i); err != nil {
			return fmt.Errorf("insert credit: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) MovesetCredits(ctx context.Context, movesetID int64) ([]MovesetModder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mm.moveset_id, mm.modder_id, mm.sort_order, md.name
		FROM moveset_modders mm
		JOIN modders md ON md.id = mm.modder_id
		WHERE mm.moveset_id=$1
		ORDER BY mm.sort_order ASC
	`, movesetID)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	items := make([]MovesetModder, 0)
	for rows.Next() {
		var item MovesetModder
		if err := rows.Scan(&item.MovesetID, &item.ModderID, &item.SortOrder, &item.ModderName); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credits: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListSeries(ctx context.Context) ([]Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, icon_url, created_at, updated_at
		FROM series
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	items := make([]Series, 0)
	for rows.Next() {
		var item Series
		if err := rows.Scan(&item.ID, &item.Name, &item.IconURL, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSeries(ctx context.Context, seriesID int64) (Series, error) {
	var item Series
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, icon_url, created_at, updated_at
		FROM series
		WHERE id=$1
	`, seriesID).Scan(&item.ID, &item.Name, &item.IconURL, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Series{}, err
	}
	return item, nil
}

func insertSeriesTx(ctx context.Context, tx *sql.Tx, item Series) (Series, error) {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO series (name, icon_url)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, item.Name, item.IconURL).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Series{}, fmt.Errorf("insert series: %w", err)
	}
	return item, nil
}

func updateSeriesTx(ctx context.Context, tx *sql.Tx, item Series) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE series
		SET name=$2, icon_url=$3, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Name, item.IconURL)
	if err != nil {
		return fmt.Errorf("update series: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSeries(ctx context.Context, seriesID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id=$1`, seriesID)
	if err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	return nil
}

// SeriesMovesetCounts returns the moveset count for every series in one query,
// counting all movesets regardless of visibility.
func (s *PostgresStore) SeriesMovesetCounts(ctx context.Context) ([]SeriesMovesetCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT series_id, COUNT(*)
		FROM movesets
		WHERE series_id IS NOT NULL
		GROUP BY series_id
	`)
	if err != nil {
		return nil, fmt.Errorf("count series movesets: %w", err)
	}
	defer rows.Close()

	items := make([]SeriesMovesetCount, 0)
	for rows.Next() {
		var item SeriesMovesetCount
		if err := rows.Scan(&item.SeriesID, &item.Count); err != nil {
			return nil, fmt.Errorf("scan series count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series counts: %w", err)
	}
	return items, nil
}

// MovesetModderIDs implements moderation.Directory.
func (s *PostgresStore) MovesetModderIDs(ctx context.Context, movesetID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT modder_id FROM moveset_modders WHERE moveset_id=$1 ORDER BY sort_order ASC
	`, movesetID)
	if err != nil {
		return nil, fmt.Errorf("moveset modder ids: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// SeriesModderIDs implements moderation.Directory: the union of modder ids
// across every moveset in the series.
func (s *PostgresStore) SeriesModderIDs(ctx context.Context, seriesID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT mm.modder_id
		FROM moveset_modders mm
		JOIN movesets m ON m.id = mm.moveset_id
		WHERE m.series_id=$1
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("series modder ids: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// SeriesMovesetCount implements moderation.Directory.
func (s *PostgresStore) SeriesMovesetCount(ctx context.Context, seriesID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movesets WHERE series_id=$1`, seriesID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("series moveset count: %w", err)
	}
	return count, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// int64Array renders ids for a Postgres bigint[] parameter without pulling in
// the pgx native codec path of database/sql.
func int64Array(ids []int64) string {
	if len(ids) == 0 {
		return "{}"
	}
	out := "{"
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d", id)
	}
	return out + "}"
}
