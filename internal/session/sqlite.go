package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/vector"
)

// SQLiteStore persists sessions in a SQLite database, one row per user plus their
// documents and indexed chunks, so sessions survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		pending TEXT,
		char_count INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		dimensions INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS session_documents (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS session_chunks (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		chunk_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB NOT NULL,
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Get loads a session with its documents and index.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		sess        = &Session{ID: id}
		status      string
		pendingJSON sql.NullString
		dimensions  int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, pending, char_count, chunk_count, dimensions, updated_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&status, &pendingJSON, &sess.CharCount, &sess.ChunkCount, &dimensions, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.Status = Status(status)
	if pendingJSON.Valid && pendingJSON.String != "" {
		if err := json.Unmarshal([]byte(pendingJSON.String), &sess.Pending); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending: %w", err)
		}
	}

	if sess.Documents, err = s.documents(ctx, id); err != nil {
		return nil, err
	}
	if dimensions > 0 {
		entries, err := s.entries(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess.Index, err = vector.Restore(dimensions, entries); err != nil {
			return nil, fmt.Errorf("restore index: %w", err)
		}
	}
	if sess.Status == StatusReady && !sess.Ready() {
		sess.Reset()
	}
	return sess, nil
}

func (s *SQLiteStore) documents(ctx context.Context, id string) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, text FROM session_documents WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.Name, &d.Text); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) entries(ctx context.Context, id string) ([]vector.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, chunk_index, content, metadata, embedding
		 FROM session_chunks WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []vector.Entry
	for rows.Next() {
		var (
			ch           models.Chunk
			metadataJSON sql.NullString
			blob         []byte
		)
		if err := rows.Scan(&ch.ID, &ch.Index, &ch.Content, &metadataJSON, &blob); err != nil {
			return nil, err
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &ch.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		vec, err := vector.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", ch.ID, err)
		}
		entries = append(entries, vector.Entry{Chunk: ch, Vector: vec})
	}
	return entries, rows.Err()
}

// Save replaces the whole session record in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	pendingJSON, err := json.Marshal(sess.Pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending: %w", err)
	}
	dimensions := 0
	var entries []vector.Entry
	if sess.Index != nil {
		dimensions = sess.Index.Dimensions()
		entries = sess.Index.Entries()
	}
	updatedAt := sess.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, status, pending, char_count, chunk_count, dimensions, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, pending = excluded.pending,
		   char_count = excluded.char_count, chunk_count = excluded.chunk_count,
		   dimensions = excluded.dimensions, updated_at = excluded.updated_at`,
		sess.ID, string(sess.Status), string(pendingJSON), sess.CharCount, sess.ChunkCount, dimensions, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_documents WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_chunks WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_documents (session_id, position, name, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer docStmt.Close()
	for i, d := range sess.Documents {
		if _, err := docStmt.ExecContext(ctx, sess.ID, i, d.Name, d.Text); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", d.Name, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_chunks (session_id, position, chunk_id, chunk_index, content, metadata, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()
	for i, e := range entries {
		metadataJSON, err := json.Marshal(e.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := chunkStmt.ExecContext(ctx, sess.ID, i, e.Chunk.ID, e.Chunk.Index, e.Chunk.Content,
			string(metadataJSON), vector.EncodeVector(e.Vector)); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", e.Chunk.ID, err)
		}
	}

	return tx.Commit()
}

// Delete removes the session and everything it owns.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
