// Package store persists memory records and answers similarity queries.
//
// SQLite is the durable system of record: every MemoryRecord field is a
// first-class column so category, access counters and strengths stay
// independently queryable, and reinforcement is a single atomic UPDATE.
// A chromem-go collection mirrors the embeddings in memory for top-K
// cosine search and is rebuilt from SQLite on open, so losing it never
// loses data.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	chromem "github.com/philippgille/chromem-go"
	_ "modernc.org/sqlite"

	"github.com/xiy/decay-mcp/pkg/types"
)

// Stats summarizes record counters for dashboards and reports.
type Stats struct {
	Total      int64
	ByCategory map[types.Category]int64
}

// RequestLog captures one incoming MCP request handled by the server.
type RequestLog struct {
	ID         int64
	Method     string
	ToolName   string
	Success    bool
	ErrorText  string
	DurationMS int64
	CreatedAt  time.Time
}

// Store represents persistence operations used by the memory service.
type Store interface {
	InsertMemory(ctx context.Context, rec types.MemoryRecord) error
	// SearchSimilar returns up to k records ordered by descending cosine
	// similarity to vector.
	SearchSimilar(ctx context.Context, vector []float32, k int) ([]types.MemoryRecord, error)
	// Reinforce atomically sets last_accessed and increments access_count
	// for one record. Returns sql.ErrNoRows for an unknown id.
	Reinforce(ctx context.Context, id string, now time.Time) error
	GetMemory(ctx context.Context, id string) (types.MemoryRecord, error)
	AllMemories(ctx context.Context) ([]types.MemoryRecord, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// SQLiteStore is the SQLite-backed store with an in-process vector index.
type SQLiteStore struct {
	db      *sql.DB
	logger  *log.Logger
	vectors *chromem.Collection

	// Serializes chromem writes; SQLite writes are already serialized by
	// the single connection.
	vecMu sync.Mutex
}

const memoryColumns = `id, text, category, embedding, created_at, last_accessed, access_count, base_strength`

// OpenSQLite opens the store, applies pending schema migrations and
// rebuilds the similarity index from the persisted rows.
func OpenSQLite(ctx context.Context, dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if _, err := Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.rebuildIndex(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) rebuildIndex(ctx context.Context) error {
	col, err := chromem.NewDB().CreateCollection("memories", nil, nil)
	if err != nil {
		return fmt.Errorf("create vector collection: %w", err)
	}
	s.vectors = col

	recs, err := s.AllMemories(ctx)
	if err != nil {
		return fmt.Errorf("load memories for index: %w", err)
	}
	for _, rec := range recs {
		if err := col.AddDocument(ctx, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Embedding: rec.Vector,
		}); err != nil {
			return fmt.Errorf("index memory %s: %w", rec.ID, err)
		}
	}
	if len(recs) > 0 {
		s.logger.Debug("rebuilt similarity index", "records", len(recs))
	}
	return nil
}

func (s *SQLiteStore) InsertMemory(ctx context.Context, rec types.MemoryRecord) error {
	const q = `INSERT INTO memories (` + memoryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		rec.Text,
		string(rec.Category),
		encodeVector(rec.Vector),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.LastAccessed.UTC().Format(time.RFC3339Nano),
		rec.AccessCount,
		rec.BaseStrength,
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	s.vecMu.Lock()
	defer s.vecMu.Unlock()
	if err := s.vectors.AddDocument(ctx, chromem.Document{
		ID:        rec.ID,
		Content:   rec.Text,
		Embedding: rec.Vector,
	}); err != nil {
		// Keep SQLite and the index in agreement.
		if _, derr := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, rec.ID); derr != nil {
			s.logger.Error("failed to roll back insert after index error", "id", rec.ID, "error", derr)
		}
		return fmt.Errorf("index memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SearchSimilar(ctx context.Context, vector []float32, k int) ([]types.MemoryRecord, error) {
	if k <= 0 {
		k = 5
	}
	// chromem rejects nResults above the collection size.
	if n := s.vectors.Count(); n < k {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	results, err := s.vectors.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}

	recs := make([]types.MemoryRecord, 0, len(results))
	for _, res := range results {
		rec, err := s.GetMemory(ctx, res.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("indexed memory missing from store", "id", res.ID)
				continue
			}
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *SQLiteStore) Reinforce(ctx context.Context, id string, now time.Time) error {
	const q = `UPDATE memories SET last_accessed = ?, access_count = access_count + 1 WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, now.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("reinforce memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reinforce rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (types.MemoryRecord, error) {
	const q = `SELECT ` + memoryColumns + ` FROM memories WHERE id = ? LIMIT 1`
	rec, err := scanMemoryRow(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("get memory: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) AllMemories(ctx context.Context) ([]types.MemoryRecord, error) {
	const q = `SELECT ` + memoryColumns + ` FROM memories ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var recs []types.MemoryRecord
	for rows.Next() {
		rec, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RecentMemories returns compact rows in newest-first order for the
// admin dashboard.
func (s *SQLiteStore) RecentMemories(ctx context.Context, limit int) ([]types.MemoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT ` + memoryColumns + ` FROM memories ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent memories: %w", err)
	}
	defer rows.Close()

	recs := make([]types.MemoryRecord, 0, limit)
	for rows.Next() {
		rec, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByCategory: map[types.Category]int64{}}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM memories`).Scan(&st.Total); err != nil {
		return st, fmt.Errorf("count memories: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT category, count(*) FROM memories GROUP BY category`)
	if err != nil {
		return st, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return st, fmt.Errorf("scan category count: %w", err)
		}
		st.ByCategory[types.Category(cat)] = n
	}
	return st, rows.Err()
}

// InsertRequestLog stores one request event for admin observability.
func (s *SQLiteStore) InsertRequestLog(ctx context.Context, rec RequestLog) error {
	ts := rec.CreatedAt.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO mcp_requests (
		method, tool_name, success, error_text, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(rec.Method),
		strings.TrimSpace(rec.ToolName),
		success,
		strings.TrimSpace(rec.ErrorText),
		rec.DurationMS,
		ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// RecentRequestLogs returns most recent request events, newest first.
func (s *SQLiteStore) RecentRequestLogs(ctx context.Context, limit int) ([]RequestLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, method, tool_name, success, error_text, duration_ms, created_at
FROM mcp_requests
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	defer rows.Close()

	items := make([]RequestLog, 0, limit)
	for rows.Next() {
		var (
			row       RequestLog
			success   int
			createdAt string
		)
		if err := rows.Scan(&row.ID, &row.Method, &row.ToolName, &success, &row.ErrorText, &row.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		row.Success = success == 1
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			row.CreatedAt = ts
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

// Migrations lists the schema upgrades recorded for this database.
func (s *SQLiteStore) Migrations(ctx context.Context) ([]AppliedMigration, error) {
	return AppliedMigrations(ctx, s.db)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemoryRow(sc scanner) (types.MemoryRecord, error) {
	var rec types.MemoryRecord
	var category string
	var blob []byte
	var createdAt, lastAccessed string
	if err := sc.Scan(
		&rec.ID,
		&rec.Text,
		&category,
		&blob,
		&createdAt,
		&lastAccessed,
		&rec.AccessCount,
		&rec.BaseStrength,
	); err != nil {
		return rec, err
	}

	rec.Category = types.Category(category)
	rec.Vector = decodeVector(blob)

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return rec, fmt.Errorf("parse created_at: %w", err)
	}
	last, err := time.Parse(time.RFC3339Nano, lastAccessed)
	if err != nil {
		return rec, fmt.Errorf("parse last_accessed: %w", err)
	}
	rec.CreatedAt = created
	rec.LastAccessed = last
	return rec, nil
}

// Embeddings are stored as little-endian float32 blobs.

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
