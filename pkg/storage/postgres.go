package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresStorage implements LinkStorage and VisitStorage on a pgx pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS links (
  key         TEXT PRIMARY KEY,
  long_url    TEXT NOT NULL,
  title       TEXT,
  owner_id    TEXT,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  visit_count BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS visits (
  id         BIGSERIAL PRIMARY KEY,
  link_key   TEXT NOT NULL,
  source_ip  TEXT NOT NULL,
  user_agent TEXT,
  referer    TEXT,
  visited_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_visits_link_key ON visits (link_key);
CREATE INDEX IF NOT EXISTS idx_links_owner_id ON links (owner_id);
`

// Migrate creates the schema. Safe to run on every startup.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStorage) Create(ctx context.Context, link *Link) error {
	query := `INSERT INTO links (key, long_url, title, owner_id, created_at, visit_count)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, query,
		link.Key, link.LongURL, link.Title, link.OwnerID, link.CreatedAt, link.VisitCount)
	return mapDuplicate(err)
}

func (s *PostgresStorage) GetByKey(ctx context.Context, key string) (*Link, error) {
	query := `SELECT key, long_url, title, owner_id, created_at, visit_count
	          FROM links WHERE key = $1`
	row := s.pool.QueryRow(ctx, query, key)
	var link Link
	err := row.Scan(&link.Key, &link.LongURL, &link.Title, &link.OwnerID, &link.CreatedAt, &link.VisitCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (s *PostgresStorage) Update(ctx context.Context, link *Link) error {
	query := `UPDATE links SET long_url = $2, title = $3, owner_id = $4 WHERE key = $1`
	_, err := s.pool.Exec(ctx, query, link.Key, link.LongURL, link.Title, link.OwnerID)
	return err
}

// Rename moves the link row and its visit events to the new key in one
// transaction, so there is no window where the link exists under both keys
// or neither.
func (s *PostgresStorage) Rename(ctx context.Context, oldKey, newKey string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rename: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE links SET key = $2 WHERE key = $1`, oldKey, newKey); err != nil {
		return mapDuplicate(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE visits SET link_key = $2 WHERE link_key = $1`, oldKey, newKey); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStorage) Delete(ctx context.Context, key string) (DeleteResult, error) {
	var res DeleteResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM visits WHERE link_key = $1`, key)
	if err != nil {
		return res, err
	}
	res.EventsRemoved = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM links WHERE key = $1`, key)
	if err != nil {
		return res, err
	}
	res.LinksRemoved = tag.RowsAffected()

	return res, tx.Commit(ctx)
}

func (s *PostgresStorage) DeleteByOwner(ctx context.Context, ownerID string) (DeleteResult, error) {
	var res DeleteResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin owner delete: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM visits WHERE link_key IN (SELECT key FROM links WHERE owner_id = $1)`, ownerID)
	if err != nil {
		return res, err
	}
	res.EventsRemoved = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM links WHERE owner_id = $1`, ownerID)
	if err != nil {
		return res, err
	}
	res.LinksRemoved = tag.RowsAffected()

	return res, tx.Commit(ctx)
}

func (s *PostgresStorage) Search(ctx context.Context, q SearchQuery) (SearchResults, error) {
	where, args := q.whereClause()

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM links"+where, args...).Scan(&total); err != nil {
		return SearchResults{}, err
	}

	page := q.clampPage(total)
	per := q.perPage()
	offset := (page - 1) * per

	query := `SELECT key, long_url, title, owner_id, created_at, visit_count FROM links` +
		where + q.orderClause() +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, per, offset)...)
	if err != nil {
		return SearchResults{}, err
	}
	defer rows.Close()

	results := make([]Link, 0, per)
	for rows.Next() {
		var link Link
		if err := rows.Scan(&link.Key, &link.LongURL, &link.Title, &link.OwnerID, &link.CreatedAt, &link.VisitCount); err != nil {
			return SearchResults{}, err
		}
		results = append(results, link)
	}
	if err := rows.Err(); err != nil {
		return SearchResults{}, err
	}
	return SearchResults{Results: results, TotalResults: total, Page: page}, nil
}

func (s *PostgresStorage) Count(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	var err error
	if ownerID != "" {
		err = s.pool.QueryRow(ctx, `SELECT count(*) FROM links WHERE owner_id = $1`, ownerID).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT count(*) FROM links`).Scan(&n)
	}
	return n, err
}

func (s *PostgresStorage) IncrementVisitCount(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `UPDATE links SET visit_count = visit_count + 1 WHERE key = $1`, key)
	return err
}

func (s *PostgresStorage) ReconcileVisitCounts(ctx context.Context) (int64, error) {
	query := `
UPDATE links SET visit_count = sub.n
FROM (
  SELECT l.key, count(v.id) AS n
  FROM links l LEFT JOIN visits v ON v.link_key = l.key
  GROUP BY l.key
) sub
WHERE links.key = sub.key AND links.visit_count <> sub.n`
	tag, err := s.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStorage) Insert(ctx context.Context, event *VisitEvent) error {
	query := `INSERT INTO visits (link_key, source_ip, user_agent, referer, visited_at)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	return s.pool.QueryRow(ctx, query,
		event.LinkKey, event.SourceIP, event.UserAgent, event.Referer, event.Time).Scan(&event.ID)
}

func (s *PostgresStorage) ByKey(ctx context.Context, key string) ([]VisitEvent, error) {
	query := `SELECT id, link_key, source_ip, user_agent, referer, visited_at
	          FROM visits WHERE link_key = $1 ORDER BY visited_at ASC, id ASC`
	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []VisitEvent
	for rows.Next() {
		var ev VisitEvent
		if err := rows.Scan(&ev.ID, &ev.LinkKey, &ev.SourceIP, &ev.UserAgent, &ev.Referer, &ev.Time); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresStorage) CountByKey(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM visits WHERE link_key = $1`, key).Scan(&n)
	return n, err
}

func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return err
}
