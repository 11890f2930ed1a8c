package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/seantiz/estimator/internal/model"

	_ "modernc.org/sqlite"
)

const createRequestsTable = `
CREATE TABLE IF NOT EXISTS requests (
    id                 TEXT PRIMARY KEY,
    status             TEXT NOT NULL,
    force_field_id     TEXT NOT NULL,
    ledger             BLOB NOT NULL,
    error              TEXT,
    queued_count       INTEGER NOT NULL DEFAULT 0,
    estimated_count    INTEGER NOT NULL DEFAULT 0,
    unsuccessful_count INTEGER NOT NULL DEFAULT 0,
    created_at         DATETIME NOT NULL,
    started_at         DATETIME,
    finished_at        DATETIME
)`

const createStoredDataTable = `
CREATE TABLE IF NOT EXISTS stored_data (
    id             TEXT PRIMARY KEY,
    substance_id   TEXT NOT NULL,
    force_field_id TEXT NOT NULL,
    property_type  TEXT,
    substance      BLOB NOT NULL,
    observables    BLOB,
    payload        BLOB,
    created_at     DATETIME NOT NULL
)`

const createStoredDataIndex = `
CREATE INDEX IF NOT EXISTS idx_stored_data_substance
    ON stored_data (substance_id, force_field_id)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. Ledgers and observables are
// encoded with msgpack.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection; pin to one so every
	// query sees the same tables.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createRequestsTable, createStoredDataTable, createStoredDataIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRequest inserts a new request record.
func (s *SQLiteStore) CreateRequest(ctx context.Context, r *model.Request) error {
	ledger, counts, err := encodeLedger(r.Ledger)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO requests (
			id, status, force_field_id, ledger, error,
			queued_count, estimated_count, unsuccessful_count,
			created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Status, r.Ledger.ForceFieldID, ledger, r.Error,
		counts.queued, counts.estimated, counts.unsuccessful,
		r.CreatedAt, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by ID.
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, ledger, error, created_at, started_at, finished_at
		FROM requests WHERE id = ?`, id,
	)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

// ListRequests returns a paginated list of requests ordered by created_at DESC,
// along with the total count of all requests.
func (s *SQLiteStore) ListRequests(ctx context.Context, limit, offset int) ([]*model.Request, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM requests").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, status, ledger, error, created_at, started_at, finished_at
		FROM requests ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate requests: %w", err)
	}

	return requests, total, nil
}

// UpdateRequestStatus moves a request to status. The transition is checked
// against model.ValidTransition. Entering running sets started_at; terminal
// statuses set finished_at.
func (s *SQLiteStore) UpdateRequestStatus(ctx context.Context, id, status string) error {
	var current string
	err := s.db.QueryRowContext(ctx, "SELECT status FROM requests WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get request status: %w", err)
	}
	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%s -> %s: %w", current, status, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	var result sql.Result
	switch {
	case status == model.StatusRunning:
		result, err = s.db.ExecContext(ctx,
			"UPDATE requests SET status = ?, started_at = ? WHERE id = ? AND status = ?",
			status, now, id, current,
		)
	case model.IsTerminal(status):
		result, err = s.db.ExecContext(ctx,
			"UPDATE requests SET status = ?, finished_at = ? WHERE id = ? AND status = ?",
			status, now, id, current,
		)
	default:
		result, err = s.db.ExecContext(ctx,
			"UPDATE requests SET status = ? WHERE id = ? AND status = ?",
			status, id, current,
		)
	}
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// The status changed underneath us.
		return fmt.Errorf("%s -> %s: %w", current, status, ErrInvalidTransition)
	}

	return nil
}

// UpdateRequest overwrites the mutable fields of a request: status, ledger,
// error and timestamps.
func (s *SQLiteStore) UpdateRequest(ctx context.Context, r *model.Request) error {
	ledger, counts, err := encodeLedger(r.Ledger)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE requests SET
			status = ?, ledger = ?, error = ?,
			queued_count = ?, estimated_count = ?, unsuccessful_count = ?,
			started_at = COALESCE(?, started_at), finished_at = COALESCE(?, finished_at)
		WHERE id = ?`,
		r.Status, ledger, r.Error,
		counts.queued, counts.estimated, counts.unsuccessful,
		r.StartedAt, r.FinishedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRequestStats returns request counts per status and property totals.
func (s *SQLiteStore) GetRequestStats(ctx context.Context) (*RequestStats, error) {
	stats := &RequestStats{CountByStatus: make(map[string]int)}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(estimated_count), 0), COALESCE(SUM(unsuccessful_count), 0)
		FROM requests`,
	).Scan(&stats.Total, &stats.TotalEstimated, &stats.TotalUnsuccessful)
	if err != nil {
		return nil, fmt.Errorf("aggregate requests: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM requests GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	return stats, nil
}

// StoreData persists d under substanceID. Missing IDs and creation times are
// filled in.
func (s *SQLiteStore) StoreData(ctx context.Context, substanceID string, d *model.StoredData) error {
	if d.ID == "" {
		d.ID = model.NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	substance, err := msgpack.Marshal(d.Substance)
	if err != nil {
		return fmt.Errorf("encode substance: %w", err)
	}
	observables, err := msgpack.Marshal(d.Observables)
	if err != nil {
		return fmt.Errorf("encode observables: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO stored_data (
			id, substance_id, force_field_id, property_type,
			substance, observables, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, substanceID, d.ForceFieldID, d.PropertyType,
		substance, observables, d.Payload, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stored data: %w", err)
	}
	return nil
}

// RetrieveData returns the data stored for substanceID, oldest first.
func (s *SQLiteStore) RetrieveData(ctx context.Context, substanceID, forceFieldID string) ([]*model.StoredData, error) {
	query := `SELECT id, force_field_id, property_type, substance, observables, payload, created_at
		FROM stored_data WHERE substance_id = ?`
	args := []any{substanceID}
	if forceFieldID != "" {
		query += " AND force_field_id = ?"
		args = append(args, forceFieldID)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stored data: %w", err)
	}
	defer rows.Close()

	var out []*model.StoredData
	for rows.Next() {
		var (
			d            model.StoredData
			propertyType sql.NullString
			substance    []byte
			observables  []byte
		)
		if err := rows.Scan(&d.ID, &d.ForceFieldID, &propertyType, &substance, &observables, &d.Payload, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stored data: %w", err)
		}
		d.PropertyType = propertyType.String
		if err := msgpack.Unmarshal(substance, &d.Substance); err != nil {
			return nil, fmt.Errorf("decode substance: %w", err)
		}
		if len(observables) > 0 {
			if err := msgpack.Unmarshal(observables, &d.Observables); err != nil {
				return nil, fmt.Errorf("decode observables: %w", err)
			}
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stored data: %w", err)
	}
	return out, nil
}

type ledgerCounts struct {
	queued, estimated, unsuccessful int
}

func encodeLedger(l *model.Ledger) ([]byte, ledgerCounts, error) {
	if l == nil {
		return nil, ledgerCounts{}, errors.New("request has no ledger")
	}
	b, err := msgpack.Marshal(l)
	if err != nil {
		return nil, ledgerCounts{}, fmt.Errorf("encode ledger: %w", err)
	}
	return b, ledgerCounts{
		queued:       len(l.Queued),
		estimated:    len(l.Estimated),
		unsuccessful: len(l.Unsuccessful),
	}, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*model.Request, error) {
	var (
		r      model.Request
		ledger []byte
		errMsg sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Status, &ledger, &errMsg, &r.CreatedAt, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	r.Error = errMsg.String

	var l model.Ledger
	if err := msgpack.Unmarshal(ledger, &l); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if l.Estimated == nil {
		l.Estimated = make(map[string]model.PhysicalProperty)
	}
	if l.Unsuccessful == nil {
		l.Unsuccessful = make(map[string]*model.EstimatorError)
	}
	r.Ledger = &l
	return &r, nil
}
