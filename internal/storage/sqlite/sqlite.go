// Package sqlite implements the storage.Store interface over SQLite.
//
// Records are stored as JSON payloads beside a few queryable key
// columns. The JSON column is authoritative; the key columns exist for
// filtering and ordering only.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/isyncso/apidiag/internal/storage"
	"github.com/isyncso/apidiag/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS api_specs (
	api_id     TEXT PRIMARY KEY,
	version    TEXT NOT NULL DEFAULT '',
	crawled_at TIMESTAMP NOT NULL,
	payload    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mismatches (
	id          TEXT PRIMARY KEY,
	api_id      TEXT NOT NULL,
	severity    TEXT NOT NULL,
	type        TEXT NOT NULL,
	status      TEXT NOT NULL,
	detected_at TIMESTAMP NOT NULL,
	payload     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mismatches_api_id ON mismatches(api_id);
CREATE INDEX IF NOT EXISTS idx_mismatches_status ON mismatches(status);
`

// Store is the SQLite-backed storage.Store implementation.
type Store struct {
	db *sql.DB
}

// Compile-time check that Store implements storage.Store.
var _ storage.Store = (*Store)(nil)

// New opens (and if needed creates) the database at path. ":memory:"
// is supported for tests.
func New(path string) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// UpsertSpec replaces the stored specification for the spec's API.
func (s *Store) UpsertSpec(ctx context.Context, spec *types.CrawledAPISpec) error {
	if spec == nil || spec.APIID == "" {
		return fmt.Errorf("spec with api_id is required")
	}

	payload, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_specs (api_id, version, crawled_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(api_id) DO UPDATE SET
			version = excluded.version,
			crawled_at = excluded.crawled_at,
			payload = excluded.payload`,
		spec.APIID, spec.Version, spec.CrawledAt.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to upsert spec for %s: %w", spec.APIID, err)
	}
	return nil
}

// GetSpec returns the stored specification, or nil when absent.
func (s *Store) GetSpec(ctx context.Context, apiID string) (*types.CrawledAPISpec, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM api_specs WHERE api_id = ?`, apiID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query spec for %s: %w", apiID, err)
	}

	var spec types.CrawledAPISpec
	if err := json.Unmarshal([]byte(payload), &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spec for %s: %w", apiID, err)
	}
	return &spec, nil
}

// ListSpecs returns every stored specification ordered by API id.
func (s *Store) ListSpecs(ctx context.Context) ([]*types.CrawledAPISpec, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM api_specs ORDER BY api_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query specs: %w", err)
	}
	defer rows.Close()

	var specs []*types.CrawledAPISpec
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan spec row: %w", err)
		}
		var spec types.CrawledAPISpec
		if err := json.Unmarshal([]byte(payload), &spec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal spec: %w", err)
		}
		specs = append(specs, &spec)
	}
	return specs, rows.Err()
}

// UpsertMismatch stores a mismatch by id after validating it.
func (s *Store) UpsertMismatch(ctx context.Context, mismatch *types.APIMismatch) error {
	if mismatch == nil || mismatch.ID == "" {
		return fmt.Errorf("mismatch with id is required")
	}
	if err := mismatch.Validate(); err != nil {
		return fmt.Errorf("invalid mismatch %s: %w", mismatch.ID, err)
	}

	payload, err := json.Marshal(mismatch)
	if err != nil {
		return fmt.Errorf("failed to marshal mismatch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mismatches (id, api_id, severity, type, status, detected_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			api_id = excluded.api_id,
			severity = excluded.severity,
			type = excluded.type,
			status = excluded.status,
			detected_at = excluded.detected_at,
			payload = excluded.payload`,
		mismatch.ID, mismatch.APIID, string(mismatch.Severity), string(mismatch.Type),
		string(mismatch.Status), mismatch.DetectedAt.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to upsert mismatch %s: %w", mismatch.ID, err)
	}
	return nil
}

// GetMismatch returns a mismatch by id, or nil when absent.
func (s *Store) GetMismatch(ctx context.Context, id string) (*types.APIMismatch, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM mismatches WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mismatch %s: %w", id, err)
	}

	var mismatch types.APIMismatch
	if err := json.Unmarshal([]byte(payload), &mismatch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mismatch %s: %w", id, err)
	}
	return &mismatch, nil
}

// ListMismatches returns mismatches matching the filter, most recently
// detected first.
func (s *Store) ListMismatches(ctx context.Context, filter storage.MismatchFilter) ([]*types.APIMismatch, error) {
	query := `SELECT payload FROM mismatches`
	var conditions []string
	var args []any

	if filter.APIID != "" {
		conditions = append(conditions, "api_id = ?")
		args = append(args, filter.APIID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY detected_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mismatches: %w", err)
	}
	defer rows.Close()

	var mismatches []*types.APIMismatch
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan mismatch row: %w", err)
		}
		var m types.APIMismatch
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mismatch: %w", err)
		}
		mismatches = append(mismatches, &m)
	}
	return mismatches, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
