package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// ErrDuplicateBatch is returned by Add when the batch id was already
// stored.
var ErrDuplicateBatch = errors.New("batch already stored")

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("batch not found")

// Store persists received batches in SQLite
type Store struct {
	db *sql.DB
}

// Batch is one forwarded page as received.
type Batch struct {
	ID          int64           `json:"id"`
	BatchID     string          `json:"batch_id"`
	Endpoint    string          `json:"endpoint"`
	RecordCount int             `json:"record_count"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// EndpointStats summarizes the batches stored for one endpoint.
type EndpointStats struct {
	Endpoint     string    `json:"endpoint"`
	Batches      int       `json:"batches"`
	Records      int       `json:"records"`
	LastReceived time.Time `json:"last_received"`
}

// NewStore opens (or creates) the batch database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps in-memory databases consistent across calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL UNIQUE,
			endpoint TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			payload BLOB NOT NULL,
			received_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_endpoint_received ON batches(endpoint, received_at);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Add stores a batch and returns its row id.
func (s *Store) Add(ctx context.Context, b Batch) (int64, error) {
	query := `
		INSERT INTO batches (batch_id, endpoint, record_count, payload, received_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		b.BatchID,
		b.Endpoint,
		b.RecordCount,
		[]byte(b.Payload),
		b.ReceivedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateBatch, b.BatchID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	return id, nil
}

// Get returns one batch with its payload.
func (s *Store) Get(ctx context.Context, id int64) (Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, batch_id, endpoint, record_count, payload, received_at
		FROM batches
		WHERE id = ?
	`, id)

	b, err := scanBatch(row.Scan, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return b, err
}

// List returns the most recent batches, newest first. An empty endpoint
// matches all of them; limit <= 0 means no limit. Payloads are only
// loaded when withPayload is set.
func (s *Store) List(ctx context.Context, endpoint string, limit int, withPayload bool) ([]Batch, error) {
	payloadCol := "x''"
	if withPayload {
		payloadCol = "payload"
	}
	query := `SELECT id, batch_id, endpoint, record_count, ` + payloadCol + `, received_at FROM batches`

	var args []any
	if endpoint != "" {
		query += " WHERE endpoint = ?"
		args = append(args, endpoint)
	}
	query += " ORDER BY received_at DESC, id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows.Scan, withPayload)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	return batches, nil
}

// Stats returns per-endpoint totals ordered by endpoint.
func (s *Store) Stats(ctx context.Context) ([]EndpointStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT endpoint, COUNT(*), COALESCE(SUM(record_count), 0), MAX(received_at)
		FROM batches
		GROUP BY endpoint
		ORDER BY endpoint
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var stats []EndpointStats
	for rows.Next() {
		var st EndpointStats
		var last int64
		if err := rows.Scan(&st.Endpoint, &st.Batches, &st.Records, &last); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		st.LastReceived = time.UnixMilli(last).UTC()
		stats = append(stats, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats: %w", err)
	}

	return stats, nil
}

// Cleanup removes batches received before now minus maxAge.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	result, err := s.db.ExecContext(ctx, "DELETE FROM batches WHERE received_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old batches: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

func scanBatch(scan func(dest ...any) error, withPayload bool) (Batch, error) {
	var b Batch
	var payload []byte
	var received int64

	if err := scan(&b.ID, &b.BatchID, &b.Endpoint, &b.RecordCount, &payload, &received); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, err
		}
		return Batch{}, fmt.Errorf("failed to scan batch: %w", err)
	}

	if withPayload {
		b.Payload = json.RawMessage(payload)
	}
	b.ReceivedAt = time.UnixMilli(received).UTC()
	return b, nil
}
