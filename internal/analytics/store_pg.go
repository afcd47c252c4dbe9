package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresStore keeps payloads in the analytics_cache table. Expiry is
// enforced on read: an expired row is deleted and reported as a miss.
type PostgresStore struct {
	db  dbtx
	now func() time.Time
}

var _ ExpiringStore = (*PostgresStore)(nil)

// NewPostgresStore binds the store to a pool or transaction.
func NewPostgresStore(db dbtx) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, _, ok, err := s.GetWithExpiry(ctx, key)
	return payload, ok, err
}

// GetWithExpiry is Get that also reports when the row expires.
func (s *PostgresStore) GetWithExpiry(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var payload []byte
	var expiresAt time.Time
	err := s.db.QueryRow(ctx, `SELECT payload, expires_at FROM analytics_cache WHERE cache_key = $1`, key).Scan(&payload, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	if !s.now().Before(expiresAt) {
		if _, err := s.db.Exec(ctx, `DELETE FROM analytics_cache WHERE cache_key = $1 AND expires_at <= $2`, key, s.now()); err != nil {
			return nil, time.Time{}, false, err
		}
		return nil, time.Time{}, false, nil
	}
	return payload, expiresAt, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `INSERT INTO analytics_cache (cache_key, payload, expires_at, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cache_key) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		key, value, s.now().Add(ttl), s.now())
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM analytics_cache WHERE cache_key = $1`, key)
	return err
}

// Purge removes every expired row and reports how many were dropped.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM analytics_cache WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
