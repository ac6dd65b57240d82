// Package postgres provides a PostgreSQL-backed listings store. Records
// land as JSONB payloads with the filterable columns extracted, keyed by
// provider and MLS id.
package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// Compile-time interface checks to ensure proper implementation.
var (
	_ listings.Store       = (*Store)(nil)
	_ listings.Persistable = (*Store)(nil)
)

// Store is a listings.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Option is a function that configures a postgres Store.
type Option func(*config)

// WithEnsureSchema controls whether New creates the schema on connect.
// Enabled by default; disable when migrations are managed externally.
func WithEnsureSchema(enabled bool) Option {
	return func(cfg *config) {
		cfg.ensureSchema = enabled
	}
}

type config struct {
	ensureSchema bool
}

// New connects to the database at dsn and returns a ready store.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, errors.NewConfigError("postgres store", "dsn is required", nil)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.NewConfigError("postgres store", "connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewConfigError("postgres store", "ping", err)
	}

	s, err := NewWithPool(ctx, pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool. The caller keeps ownership of the
// pool's lifecycle unless it also calls Close.
func NewWithPool(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, errors.NewConfigError("postgres store", "pool is required", nil)
	}

	cfg := &config{ensureSchema: true}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Store{pool: pool}
	if cfg.ensureSchema {
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS listings (
  provider_id   text NOT NULL,
  mls_id        text NOT NULL,
  status        text NOT NULL,
  property_type text NOT NULL,
  state         text NOT NULL DEFAULT '',
  city          text NOT NULL DEFAULT '',
  price         bigint NOT NULL DEFAULT 0,
  payload       jsonb NOT NULL,
  revision      integer NOT NULL DEFAULT 1,
  synced_at     timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (provider_id, mls_id)
);

CREATE TABLE IF NOT EXISTS duplicate_candidates (
  id        text PRIMARY KEY,
  pair_key  text NOT NULL UNIQUE,
  resolved  boolean NOT NULL DEFAULT false,
  payload   jsonb NOT NULL,
  filed_seq bigserial,
  filed_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_errors (
  seq         bigserial PRIMARY KEY,
  id          text NOT NULL,
  provider_id text NOT NULL DEFAULT '',
  run_id      text NOT NULL DEFAULT '',
  error_type  text NOT NULL,
  occurred_at timestamptz NOT NULL,
  payload     jsonb NOT NULL
);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return errors.NewConfigError("postgres store", "ensure schema", err)
	}
	return nil
}

// Reset truncates all tables. Intended for tests and disposable
// environments.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE listings, duplicate_candidates, sync_errors RESTART IDENTITY`); err != nil {
		return errors.WrapResource("reset", "store", "", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save satisfies listings.Persistable. Rows are durable on write, so
// there is no snapshot step.
func (s *Store) Save(_ context.Context) error { return nil }

// Upsert inserts or replaces a record keyed by provider and MLS id.
func (s *Store) Upsert(ctx context.Context, property listings.Property) (bool, error) {
	if err := property.Validate(); err != nil {
		return false, err
	}
	payload, err := json.Marshal(property)
	if err != nil {
		return false, errors.WrapParse("json", property.Key(), err)
	}

	const stmt = `
INSERT INTO listings (provider_id, mls_id, status, property_type, state, city, price, payload)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (provider_id, mls_id) DO UPDATE SET
  status = EXCLUDED.status,
  property_type = EXCLUDED.property_type,
  state = EXCLUDED.state,
  city = EXCLUDED.city,
  price = EXCLUDED.price,
  payload = EXCLUDED.payload,
  revision = listings.revision + 1,
  synced_at = now()
RETURNING revision`

	var revision int
	err = s.pool.QueryRow(ctx, stmt,
		string(property.ProviderID),
		property.MLSID,
		string(property.Status),
		string(property.PropertyType),
		property.Address.State,
		property.Address.City,
		property.Price,
		payload,
	).Scan(&revision)
	if err != nil {
		return false, errors.WrapResource("upsert", "listing", property.Key(), err)
	}
	return revision == 1, nil
}

// Property returns a record by provider and MLS id.
func (s *Store) Property(ctx context.Context, providerID listings.ProviderID, mlsID string) (listings.Property, error) {
	const stmt = `SELECT payload FROM listings WHERE provider_id=$1 AND mls_id=$2`

	var payload []byte
	err := s.pool.QueryRow(ctx, stmt, string(providerID), mlsID).Scan(&payload)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return listings.Property{}, errors.NewNotFoundError("listing", mlsID)
	}
	if err != nil {
		return listings.Property{}, errors.WrapResource("get", "listing", mlsID, err)
	}
	return decodeProperty(payload, mlsID)
}

// List returns records matching the filter, ordered by provider then
// MLS id.
func (s *Store) List(ctx context.Context, filter listings.Filter) ([]listings.Property, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ProviderID != "" {
		where = append(where, "provider_id = "+arg(string(filter.ProviderID)))
	}
	if filter.Type != "" {
		where = append(where, "property_type = "+arg(string(filter.Type)))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.State != "" {
		where = append(where, "state = "+arg(filter.State))
	}
	if filter.City != "" {
		where = append(where, "city = "+arg(filter.City))
	}
	if filter.MinPrice > 0 {
		where = append(where, "price >= "+arg(filter.MinPrice))
	}
	if filter.MaxPrice > 0 {
		where = append(where, "price <= "+arg(filter.MaxPrice))
	}

	stmt := "SELECT payload FROM listings"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY provider_id, mls_id"
	if filter.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, errors.WrapResource("list", "listings", "", err)
	}
	defer rows.Close()

	var out []listings.Property
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.WrapResource("list", "listings", "", err)
		}
		p, err := decodeProperty(payload, "")
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Len returns the number of stored records.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM listings`).Scan(&n); err != nil {
		return 0, errors.WrapResource("count", "listings", "", err)
	}
	return int(n), nil
}

// Delete removes a record by provider and MLS id.
func (s *Store) Delete(ctx context.Context, providerID listings.ProviderID, mlsID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE provider_id=$1 AND mls_id=$2`,
		string(providerID), mlsID)
	if err != nil {
		return errors.WrapResource("delete", "listing", mlsID, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("listing", mlsID)
	}
	return nil
}

// SaveCandidate files a duplicate candidate. Re-filing an unresolved
// pair refreshes it in place under the originally filed id; a resolved
// pair stays resolved and the new sighting is dropped.
func (s *Store) SaveCandidate(ctx context.Context, candidate listings.DuplicateCandidate) error {
	if candidate.ID == "" {
		return errors.NewValidationError("id", candidate.ID, "cannot be empty")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.WrapResource("save", "candidate", candidate.ID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	pairKey := candidate.PairKey()

	var existingID string
	var resolved bool
	err = tx.QueryRow(ctx, `SELECT id, resolved FROM duplicate_candidates WHERE pair_key=$1 FOR UPDATE`, pairKey).
		Scan(&existingID, &resolved)
	switch {
	case err == nil:
		if resolved {
			return nil
		}
		refreshed := candidate
		refreshed.ID = existingID
		payload, err := json.Marshal(refreshed)
		if err != nil {
			return errors.WrapParse("json", existingID, err)
		}
		if _, err := tx.Exec(ctx, `UPDATE duplicate_candidates SET payload=$1 WHERE id=$2`, payload, existingID); err != nil {
			return errors.WrapResource("update", "candidate", existingID, err)
		}
	case stderrors.Is(err, pgx.ErrNoRows):
		payload, err := json.Marshal(candidate)
		if err != nil {
			return errors.WrapParse("json", candidate.ID, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO duplicate_candidates (id, pair_key, payload) VALUES ($1,$2,$3)`,
			candidate.ID, pairKey, payload); err != nil {
			return errors.WrapResource("save", "candidate", candidate.ID, err)
		}
	default:
		return errors.WrapResource("save", "candidate", candidate.ID, err)
	}

	return tx.Commit(ctx)
}

// Candidate returns a candidate by id.
func (s *Store) Candidate(ctx context.Context, id string) (listings.DuplicateCandidate, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM duplicate_candidates WHERE id=$1`, id).Scan(&payload)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return listings.DuplicateCandidate{}, errors.NewNotFoundError("candidate", id)
	}
	if err != nil {
		return listings.DuplicateCandidate{}, errors.WrapResource("get", "candidate", id, err)
	}
	return decodeCandidate(payload, id)
}

// Candidates returns all candidates, unresolved first, newest first
// within each group.
func (s *Store) Candidates(ctx context.Context, includeResolved bool) ([]listings.DuplicateCandidate, error) {
	stmt := `SELECT payload FROM duplicate_candidates`
	if !includeResolved {
		stmt += ` WHERE NOT resolved`
	}
	stmt += ` ORDER BY resolved, filed_seq DESC`

	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, errors.WrapResource("list", "candidates", "", err)
	}
	defer rows.Close()

	var out []listings.DuplicateCandidate
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.WrapResource("list", "candidates", "", err)
		}
		c, err := decodeCandidate(payload, "")
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResolveCandidate marks a candidate resolved. Resolving a candidate
// that is already resolved is a no-op.
func (s *Store) ResolveCandidate(ctx context.Context, id string, action listings.ResolveAction, merged *listings.Property) error {
	if !action.IsValid() {
		return errors.NewValidationError("action", action, "unknown resolve action")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.WrapResource("resolve", "candidate", id, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var payload []byte
	err = tx.QueryRow(ctx, `SELECT payload FROM duplicate_candidates WHERE id=$1 FOR UPDATE`, id).Scan(&payload)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NewNotFoundError("candidate", id)
	}
	if err != nil {
		return errors.WrapResource("resolve", "candidate", id, err)
	}

	candidate, err := decodeCandidate(payload, id)
	if err != nil {
		return err
	}
	if candidate.Resolved {
		return nil
	}

	now := time.Now().UTC()
	candidate.Resolved = true
	candidate.ResolvedAction = action
	candidate.ResolvedAt = &now
	if merged != nil {
		clone := merged.Clone()
		candidate.Merged = &clone
	}

	updated, err := json.Marshal(candidate)
	if err != nil {
		return errors.WrapParse("json", id, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE duplicate_candidates SET payload=$1, resolved=true WHERE id=$2`, updated, id); err != nil {
		return errors.WrapResource("resolve", "candidate", id, err)
	}
	return tx.Commit(ctx)
}

// AppendError files one failure in the append-only audit log.
func (s *Store) AppendError(ctx context.Context, syncErr listings.SyncError) error {
	payload, err := json.Marshal(syncErr)
	if err != nil {
		return errors.WrapParse("json", syncErr.ID, err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO sync_errors (id, provider_id, run_id, error_type, occurred_at, payload)
VALUES ($1,$2,$3,$4,$5,$6)`,
		syncErr.ID,
		string(syncErr.ProviderID),
		syncErr.RunID,
		string(syncErr.Type),
		syncErr.Time,
		payload,
	)
	if err != nil {
		return errors.WrapResource("append", "sync error", syncErr.ID, err)
	}
	return nil
}

// RecentErrors returns the newest entries first, at most limit.
func (s *Store) RecentErrors(ctx context.Context, limit int) ([]listings.SyncError, error) {
	stmt := `SELECT payload FROM sync_errors ORDER BY seq DESC`
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, errors.WrapResource("list", "sync errors", "", err)
	}
	defer rows.Close()

	var out []listings.SyncError
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.WrapResource("list", "sync errors", "", err)
		}
		var syncErr listings.SyncError
		if err := json.Unmarshal(payload, &syncErr); err != nil {
			return nil, errors.WrapParse("json", "sync error", err)
		}
		out = append(out, syncErr)
	}
	return out, rows.Err()
}

func decodeProperty(payload []byte, key string) (listings.Property, error) {
	var p listings.Property
	if err := json.Unmarshal(payload, &p); err != nil {
		return listings.Property{}, errors.WrapParse("json", key, err)
	}
	return p, nil
}

func decodeCandidate(payload []byte, key string) (listings.DuplicateCandidate, error) {
	var c listings.DuplicateCandidate
	if err := json.Unmarshal(payload, &c); err != nil {
		return listings.DuplicateCandidate{}, errors.WrapParse("json", key, err)
	}
	return c, nil
}
