package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/Adam-Huang/reflect/internal/embedding"
	"github.com/Adam-Huang/reflect/internal/model"
)

// timeLayout keeps sub-second precision so updated_at never sorts before created_at.
const timeLayout = time.RFC3339Nano

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS Memory (
		id            TEXT PRIMARY KEY,
		original_text TEXT NOT NULL,
		summary       TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		labels        TEXT NOT NULL DEFAULT '',
		trigger       TEXT,
		embedding     BLOB,
		metadata      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memory_trigger ON Memory(trigger);

	CREATE TABLE IF NOT EXISTS Labels (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		label       TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS Triggers (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		trigger     TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) InsertMemory(ctx context.Context, m *model.Memory) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() || m.UpdatedAt.Before(m.CreatedAt) {
		m.UpdatedAt = m.CreatedAt
	}
	if m.ID == "" {
		m.ID = s.newID(m.CreatedAt)
	}

	metaPtr, err := encodeMeta(m.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO Memory (id, original_text, summary, created_at, updated_at, labels, trigger, embedding, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OriginalText, m.Summary,
		m.CreatedAt.UTC().Format(timeLayout), m.UpdatedAt.UTC().Format(timeLayout),
		JoinLabels(m.Labels), m.Trigger, embedding.EncodeBlob(m.Embedding), metaPtr)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("memory %s: %w", m.ID, ErrExists)
		}
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateMemory(ctx context.Context, m *model.Memory) error {
	metaPtr, err := encodeMeta(m.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE Memory
		 SET original_text = ?, summary = ?, labels = ?, trigger = ?, embedding = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		m.OriginalText, m.Summary, JoinLabels(m.Labels), m.Trigger,
		embedding.EncodeBlob(m.Embedding), metaPtr, m.UpdatedAt.UTC().Format(timeLayout), m.ID)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM Memory WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Memories(ctx context.Context) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, original_text, summary, created_at, updated_at, labels, trigger, embedding, metadata
		 FROM Memory ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var createdAt, updatedAt, labels string
	var trigger, meta sql.NullString
	var blob []byte

	err := row.Scan(&m.ID, &m.OriginalText, &m.Summary, &createdAt, &updatedAt,
		&labels, &trigger, &blob, &meta)
	if err != nil {
		return m, err
	}

	m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	m.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	m.Labels = SplitLabels(labels)
	if trigger.Valid {
		t := trigger.String
		m.Trigger = &t
	}
	if len(blob) > 0 {
		m.Embedding, err = embedding.DecodeBlob(blob)
		if err != nil {
			return m, fmt.Errorf("memory %s: %w", m.ID, err)
		}
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
			return m, fmt.Errorf("memory %s metadata: %w", m.ID, err)
		}
	}
	return m, nil
}

// JoinLabels serialises labels as a comma-joined string. Labels containing a comma are not representable.
func JoinLabels(labels []string) string {
	return strings.Join(labels, ",")
}

// SplitLabels is the inverse of JoinLabels.
func SplitLabels(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func encodeMeta(meta map[string]any) (*string, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	s := string(b)
	return &s, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
