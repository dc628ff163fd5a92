// Package postgres implements the record store on PostgreSQL. Identity
// is enforced by a unique constraint on content_hash, which makes
// CreateIfAbsent atomic under concurrent source runs.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/licitawatch/licitawatch/internal/record"
	"github.com/licitawatch/licitawatch/internal/store"
)

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgxpool.Pool the store needs; pgxmock
// satisfies it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store is the PostgreSQL-backed record store.
type Store struct {
	pool querier
}

// New connects a Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id UUID PRIMARY KEY,
	content_hash TEXT NOT NULL UNIQUE,
	native_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	organization TEXT NOT NULL DEFAULT '',
	jurisdiction TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	expedient TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	publication_date DATE,
	opening_date DATE,
	extension_date DATE,
	first_observed_at TIMESTAMPTZ NOT NULL,
	last_observed_at TIMESTAMPTZ NOT NULL,
	budget_amount DOUBLE PRECISION,
	budget_currency TEXT,
	procurement_object TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	keyword_tags JSONB NOT NULL DEFAULT '[]',
	attachments JSONB NOT NULL DEFAULT '[]',
	workflow_state TEXT NOT NULL,
	workflow_history JSONB NOT NULL DEFAULT '[]',
	extension_history JSONB NOT NULL DEFAULT '[]',
	enrichment_level INT NOT NULL DEFAULT 1,
	raw_snapshot_uri TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS records_source_native_idx ON records (source, native_id) WHERE native_id <> '';
CREATE INDEX IF NOT EXISTS records_state_idx ON records (workflow_state);
`

// EnsureSchema creates the records table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const recordColumns = `id, content_hash, native_id, title, organization, jurisdiction, source,
source_url, expedient, description, publication_date, opening_date, extension_date,
first_observed_at, last_observed_at, budget_amount, budget_currency, procurement_object,
category, keyword_tags, attachments, workflow_state, workflow_history, extension_history,
enrichment_level, raw_snapshot_uri`

// CreateIfAbsent inserts rec unless its content hash exists; the unique
// constraint arbitrates concurrent inserts.
func (s *Store) CreateIfAbsent(ctx context.Context, rec *record.Record) (*record.Record, bool, error) {
	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	args, err := recordArgs(stored)
	if err != nil {
		return nil, false, err
	}
	query := fmt.Sprintf(`
INSERT INTO records (%s)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
ON CONFLICT (content_hash) DO NOTHING
RETURNING %s`, recordColumns, recordColumns)

	row := s.pool.QueryRow(ctx, query, args...)
	inserted, err := scanRecord(row)
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert record: %w", err)
	}
	existing, err := s.GetByFingerprint(ctx, stored.ContentHash)
	if err != nil {
		return nil, false, fmt.Errorf("load conflicting record: %w", err)
	}
	return existing, false, nil
}

// Save replaces the stored row identified by rec.ID.
func (s *Store) Save(ctx context.Context, rec *record.Record) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	query := `
UPDATE records SET
	content_hash = $2, native_id = $3, title = $4, organization = $5, jurisdiction = $6,
	source = $7, source_url = $8, expedient = $9, description = $10, publication_date = $11,
	opening_date = $12, extension_date = $13, first_observed_at = $14, last_observed_at = $15,
	budget_amount = $16, budget_currency = $17, procurement_object = $18, category = $19,
	keyword_tags = $20, attachments = $21, workflow_state = $22, workflow_history = $23,
	extension_history = $24, enrichment_level = $25, raw_snapshot_uri = $26
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Get loads one record by id.
func (s *Store) Get(ctx context.Context, id string) (*record.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM records WHERE id = $1", recordColumns)
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// GetByFingerprint loads one record by content hash.
func (s *Store) GetByFingerprint(ctx context.Context, hash string) (*record.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM records WHERE content_hash = $1", recordColumns)
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record by fingerprint: %w", err)
	}
	return rec, nil
}

// GetByNativeID loads one record by source-native identifier.
func (s *Store) GetByNativeID(ctx context.Context, source, nativeID string) (*record.Record, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM records WHERE source = $1 AND native_id = $2 AND native_id <> ''", recordColumns)
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, source, nativeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record by native id: %w", err)
	}
	return rec, nil
}

// List returns matching records, newest observation first.
func (s *Store) List(ctx context.Context, f store.Filter) ([]*record.Record, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(column string, value string) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.Source != "" {
		add("source", f.Source)
	}
	if f.Jurisdiction != "" {
		add("jurisdiction", f.Jurisdiction)
	}
	if f.State != "" {
		add("workflow_state", string(f.State))
	}
	if f.Category != "" {
		add("category", f.Category)
	}

	query := fmt.Sprintf("SELECT %s FROM records", recordColumns)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY first_observed_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Search matches the query against title, object, description, and
// organization using ILIKE.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*record.Record, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	sql := fmt.Sprintf(`
SELECT %s FROM records
WHERE title ILIKE $1 OR procurement_object ILIKE $1 OR description ILIKE $1 OR organization ILIKE $1
ORDER BY first_observed_at DESC
LIMIT $2`, recordColumns)
	rows, err := s.pool.Query(ctx, sql, "%"+q+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func recordArgs(rec *record.Record) ([]any, error) {
	tags, err := json.Marshal(orEmptyStrings(rec.KeywordTags))
	if err != nil {
		return nil, fmt.Errorf("marshal keyword tags: %w", err)
	}
	atts, err := json.Marshal(orEmptyAttachments(rec.Attachments))
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}
	history, err := json.Marshal(orEmptyTransitions(rec.WorkflowHistory))
	if err != nil {
		return nil, fmt.Errorf("marshal workflow history: %w", err)
	}
	extensions, err := json.Marshal(orEmptyExtensions(rec.ExtensionHistory))
	if err != nil {
		return nil, fmt.Errorf("marshal extension history: %w", err)
	}

	var budgetAmount *float64
	var budgetCurrency *string
	if rec.Budget != nil {
		budgetAmount = &rec.Budget.Amount
		budgetCurrency = &rec.Budget.Currency
	}

	return []any{
		rec.ID, rec.ContentHash, rec.NativeID, rec.Title, rec.Organization, rec.Jurisdiction,
		rec.Source, rec.SourceURL, rec.Expedient, rec.Description, rec.PublicationDate,
		rec.OpeningDate, rec.ExtensionDate, rec.FirstObservedAt, rec.LastObservedAt,
		budgetAmount, budgetCurrency, rec.ProcurementObject, rec.Category, tags, atts,
		string(rec.WorkflowState), history, extensions, int(rec.EnrichmentLevel), rec.RawSnapshotURI,
	}, nil
}

func scanRecord(row pgx.Row) (*record.Record, error) {
	var (
		rec            record.Record
		budgetAmount   *float64
		budgetCurrency *string
		state          string
		level          int
		tags, atts     []byte
		history        []byte
		extensions     []byte
	)
	err := row.Scan(
		&rec.ID, &rec.ContentHash, &rec.NativeID, &rec.Title, &rec.Organization, &rec.Jurisdiction,
		&rec.Source, &rec.SourceURL, &rec.Expedient, &rec.Description, &rec.PublicationDate,
		&rec.OpeningDate, &rec.ExtensionDate, &rec.FirstObservedAt, &rec.LastObservedAt,
		&budgetAmount, &budgetCurrency, &rec.ProcurementObject, &rec.Category, &tags, &atts,
		&state, &history, &extensions, &level, &rec.RawSnapshotURI,
	)
	if err != nil {
		return nil, err
	}
	if budgetAmount != nil {
		currency := ""
		if budgetCurrency != nil {
			currency = *budgetCurrency
		}
		rec.Budget = &record.Budget{Amount: *budgetAmount, Currency: currency}
	}
	rec.WorkflowState = record.WorkflowState(state)
	rec.EnrichmentLevel = record.EnrichmentLevel(level)
	if err := json.Unmarshal(tags, &rec.KeywordTags); err != nil {
		return nil, fmt.Errorf("unmarshal keyword tags: %w", err)
	}
	if err := json.Unmarshal(atts, &rec.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments: %w", err)
	}
	if err := json.Unmarshal(history, &rec.WorkflowHistory); err != nil {
		return nil, fmt.Errorf("unmarshal workflow history: %w", err)
	}
	if err := json.Unmarshal(extensions, &rec.ExtensionHistory); err != nil {
		return nil, fmt.Errorf("unmarshal extension history: %w", err)
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]*record.Record, error) {
	var out []*record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func orEmptyStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func orEmptyAttachments(in []record.Attachment) []record.Attachment {
	if in == nil {
		return []record.Attachment{}
	}
	return in
}

func orEmptyTransitions(in []record.TransitionEntry) []record.TransitionEntry {
	if in == nil {
		return []record.TransitionEntry{}
	}
	return in
}

func orEmptyExtensions(in []record.ExtensionEntry) []record.ExtensionEntry {
	if in == nil {
		return []record.ExtensionEntry{}
	}
	return in
}
