package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PabloGalante/singlechat/internal/domain"
)

// HeadStore keeps the conversation head in a single-row table.
type HeadStore struct {
	db *sql.DB
}

func NewHeadStore(ctx context.Context, dbPath string) (*HeadStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single conversation has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &HeadStore{db: db}
	if err := store.initialize(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *HeadStore) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_head (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		head TEXT,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *HeadStore) LoadHead(ctx context.Context) (*domain.MessageID, error) {
	var head sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT head FROM chat_head WHERE id = 1`).Scan(&head)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load head: %w", err)
	}
	if !head.Valid || head.String == "" {
		return nil, nil
	}
	return domain.IDPtr(domain.MessageID(head.String)), nil
}

func (s *HeadStore) SaveHead(ctx context.Context, head *domain.MessageID) error {
	var value sql.NullString
	if head != nil {
		value = sql.NullString{String: string(*head), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_head (id, head, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET head = excluded.head, updated_at = excluded.updated_at
	`, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save head: %w", err)
	}
	return nil
}

func (s *HeadStore) Close() error {
	return s.db.Close()
}

var _ domain.HeadStore = (*HeadStore)(nil)
