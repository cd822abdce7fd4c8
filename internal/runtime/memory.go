package runtime

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hipcortex/internal/logging"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// RecordType classifies a memory record.
type RecordType string

const (
	RecordPerception RecordType = "perception"
	RecordReflexion  RecordType = "reflexion"
	RecordTemporal   RecordType = "temporal"
)

// Record is one entry in the runtime's memory log.
type Record struct {
	ID        string          `json:"id"`
	Type      RecordType      `json:"record_type"`
	Timestamp time.Time       `json:"timestamp"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Target    string          `json:"target"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Integrity string          `json:"integrity,omitempty"`
}

// NewRecord stamps a record with an id, the current time and its integrity hash.
func NewRecord(typ RecordType, actor, action, target string, metadata map[string]any) (Record, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode record metadata: %w", err)
	}
	rec := Record{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    action,
		Target:    target,
		Metadata:  meta,
	}
	rec.Integrity = rec.ComputeHash()
	return rec, nil
}

// ComputeHash returns the hex SHA-256 of the record without its integrity field.
func (r Record) ComputeHash() string {
	r.Integrity = ""
	data, _ := json.Marshal(r)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the stored integrity hash still matches.
func (r Record) Verify() bool {
	return r.Integrity != "" && r.Integrity == r.ComputeHash()
}

// MemoryStore persists records in SQLite.
type MemoryStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewMemoryStore opens (or creates) the record database at path. Use
// ":memory:" for a throwaway store.
func NewMemoryStore(path string) (*MemoryStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &MemoryStore{db: db, dbPath: path}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure memory schema: %w", err)
	}

	logging.Store("MemoryStore opened at %s", path)
	return store, nil
}

func (m *MemoryStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		record_type TEXT NOT NULL,
		ts_unix_nano INTEGER NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		target TEXT NOT NULL,
		metadata TEXT,
		integrity TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memory_type ON memory_records(record_type);
	`
	_, err := m.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (m *MemoryStore) Close() error {
	return m.db.Close()
}

// Add appends rec.
func (m *MemoryStore) Add(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.db.Exec(
		`INSERT INTO memory_records (id, record_type, ts_unix_nano, actor, action, target, metadata, integrity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Type), rec.Timestamp.UnixNano(), rec.Actor, rec.Action, rec.Target,
		string(rec.Metadata), rec.Integrity,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to store record %s: %v", rec.ID, err)
		return fmt.Errorf("failed to store record: %w", err)
	}
	logging.StoreDebug("stored %s record %s", rec.Type, rec.ID)
	return nil
}

// Count returns the number of stored records.
func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int
	if err := m.db.QueryRow(`SELECT COUNT(*) FROM memory_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// CountByType returns the number of records of one type.
func (m *MemoryStore) CountByType(typ RecordType) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM memory_records WHERE record_type = ?`, string(typ)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Recent returns up to limit records, newest first.
func (m *MemoryStore) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.Query(
		`SELECT id, record_type, ts_unix_nano, actor, action, target, metadata, integrity
		 FROM memory_records ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			typ       string
			ts        int64
			meta      sql.NullString
			integrity sql.NullString
		)
		if err := rows.Scan(&rec.ID, &typ, &ts, &rec.Actor, &rec.Action, &rec.Target, &meta, &integrity); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Type = RecordType(typ)
		rec.Timestamp = time.Unix(0, ts).UTC()
		if meta.Valid && meta.String != "" {
			rec.Metadata = json.RawMessage(meta.String)
		}
		rec.Integrity = integrity.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
