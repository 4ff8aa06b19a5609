// Package store is C2: a durable, transactional reference store backed by
// Postgres, modeling the "duck-typed collection" shape from
// original_source (Firestore-like schema-on-read) as one JSONB table per
// collection. jackc/pgx/v5 provides the driver, jmoiron/sqlx the
// ergonomic row scanning, pressly/goose/v3 the migrations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/shared/logging"
)

// Collection names, one JSONB table per collection.
const (
	CollectionDocuments = "documents"
	CollectionBuckets = "buckets"
	CollectionRules = "rules"
	CollectionRuleVersions = "rule_versions"
	CollectionClassifications = "classifications"
	CollectionAuditLogs = "audit_logs"
	CollectionEmbeddingCache = "embedding_cache"
)

var knownCollections = map[string]bool{
	CollectionDocuments: true,
	CollectionBuckets: true,
	CollectionRules: true,
	CollectionRuleVersions: true,
	CollectionClassifications: true,
	CollectionAuditLogs: true,
	CollectionEmbeddingCache: true,
}

// Store wraps a Postgres connection pool with the generic
// "id text primary key, value jsonb, updated_at timestamptz" collection
// operations every concrete domain store (documents, buckets, rules,...)
// builds on.
type Store struct {
	db *sqlx.DB
	logger *logrus.Logger
}

// Open connects to Postgres via pgx's database/sql driver and wraps it
// with sqlx for scanning.
func Open(dsn string, logger *logrus.Logger) (*Store, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeServiceUnavailable, "failed to connect to store")
	}
	return &Store{db: db, logger: logger}, nil
}

// New wraps an already-open *sqlx.DB, for tests driving a sqlmock-backed
// connection or a pool constructed by the caller.
func New(db *sqlx.DB, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type collectionRow struct {
	ID string `db:"id"`
	Value []byte `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// put inserts or replaces one row in table, identified by id.
func (s *Store) put(ctx context.Context, table, id string, value interface{}) error {
	if !knownCollections[table] {
		return apperrors.New(apperrors.ErrorTypeInvalidInput, "unknown collection").WithDetails(table)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to marshal collection value")
	}

	query := `INSERT INTO ` + table + ` (id, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err = s.db.ExecContext(ctx, query, id, data)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewDuplicateError(table)
		}
		return apperrors.Wrap(err, apperrors.ErrorTypeUnavailable, "failed to write to store").WithDetails(table)
	}
	return nil
}

// insertOnly inserts a new row, failing with Duplicate if id or a unique
// constraint (e.g. documents.content_hash) already exists.
func (s *Store) insertOnly(ctx context.Context, table, id string, value interface{}) error {
	if !knownCollections[table] {
		return apperrors.New(apperrors.ErrorTypeInvalidInput, "unknown collection").WithDetails(table)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to marshal collection value")
	}

	query := `INSERT INTO ` + table + ` (id, value, updated_at) VALUES ($1, $2, now())`
	_, err = s.db.ExecContext(ctx, query, id, data)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewDuplicateError(table)
		}
		return apperrors.Wrap(err, apperrors.ErrorTypeUnavailable, "failed to write to store").WithDetails(table)
	}
	return nil
}

func (s *Store) get(ctx context.Context, table, id string) ([]byte, error) {
	if !knownCollections[table] {
		return nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "unknown collection").WithDetails(table)
	}
	var row collectionRow
	err := s.db.GetContext(ctx, &row, `SELECT id, value, updated_at FROM `+table+` WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(table)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeUnavailable, "failed to read from store").WithDetails(table)
	}
	return row.Value, nil
}

// getMany returns the values present for the given ids, silently omitting
// any id that doesn't exist.
func (s *Store) getMany(ctx context.Context, table string, ids []string) (map[string][]byte, error) {
	if !knownCollections[table] {
		return nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "unknown collection").WithDetails(table)
	}
	if len(ids) == 0 {
		return map[string][]byte{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, value, updated_at FROM `+table+` WHERE id IN (?)`, ids)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to build batch query")
	}
	query = s.db.Rebind(query)

	var rows []collectionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeUnavailable, "failed to read from store").WithDetails(table)
	}

	out := make(map[string][]byte, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Value
	}
	return out, nil
}

func (s *Store) delete(ctx context.Context, table, id string) error {
	if !knownCollections[table] {
		return apperrors.New(apperrors.ErrorTypeInvalidInput, "unknown collection").WithDetails(table)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeUnavailable, "failed to delete from store").WithDetails(table)
	}
	return nil
}

// Filter narrows list by one or more top-level JSON fields. Value
// equality is done in Go via gjson after a coarse SQL scan, which keeps
// the query planner-independent of each collection's shape while letting
// list_references's label/tags filters stay generic across
// collections.
type Filter struct {
	Field string
	Value string
}

// list returns up to limit rows (after offset) from table, most-recently
// updated first, optionally narrowed by filters (AND-combined, each
// checked against the row's JSON value with gjson).
func (s *Store) list(ctx context.Context, table string, filters []Filter, limit, offset int) ([][]byte, error) {
	if !knownCollections[table] {
		return nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "unknown collection").WithDetails(table)
	}
	if limit <= 0 {
		limit = 50
	}

	// Over-fetch before filtering in Go since filters are evaluated against
	// arbitrary JSON paths, not indexed SQL predicates.
	scanLimit := (limit + offset) * 4
	if scanLimit < 200 {
		scanLimit = 200
	}

	var rows []collectionRow
	query := `SELECT id, value, updated_at FROM ` + table + ` ORDER BY updated_at DESC LIMIT $1`
	if err := s.db.SelectContext(ctx, &rows, query, scanLimit); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeUnavailable, "failed to list from store").WithDetails(table)
	}

	matched := make([][]byte, 0, len(rows))
	for _, r := range rows {
		if matchesFilters(r.Value, filters) {
			matched = append(matched, r.Value)
		}
	}

	if offset >= len(matched) {
		return [][]byte{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matchesFilters(value []byte, filters []Filter) bool {
	for _, f := range filters {
		result := gjson.GetBytes(value, f.Field)
		if !result.Exists {
			return false
		}
		switch result.Type {
		case gjson.JSON:
			// array field (e.g. tags): match if any element equals Value.
			matched := false
			result.ForEach(func(_, v gjson.Result) bool {
				if v.String == f.Value {
					matched = true
					return false
				}
				return true
			})
			if !matched {
				return false
			}
		default:
			if !strings.EqualFold(result.String, f.Value) {
				return false
			}
		}
	}
	return true
}

// findByField returns the first row whose JSON value has field == value,
// used for content-hash dedup lookups.
func (s *Store) findByField(ctx context.Context, table, field, value string) ([]byte, bool, error) {
	rows, err := s.list(ctx, table, []Filter{{Field: field, Value: value}}, 1, 0)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if ok := asPgError(err, &pgErr); ok {
		return pgErr.Code == "23505"
	}
	return false
}

func asPgError(err error, target **pgconn.PgError) bool {
	for err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			*target = pgErr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (s *Store) logFields(operation, table string) logging.Fields {
	return logging.DatabaseFields(operation, table)
}
