// Package file keeps the conversation head in a small JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/PabloGalante/singlechat/internal/domain"
)

// DefaultPath is where the head lives when no path is configured.
const DefaultPath = "data/chats/chat.json"

type chatFile struct {
	Head *domain.MessageID `json:"head"`
}

// HeadStore implements domain.HeadStore on a JSON file.
type HeadStore struct {
	path string
}

func NewHeadStore(path string) *HeadStore {
	if path == "" {
		path = DefaultPath
	}
	return &HeadStore{path: path}
}

// LoadHead returns nil when the file does not exist yet.
func (s *HeadStore) LoadHead(ctx context.Context) (*domain.MessageID, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chat file: %w", err)
	}

	var cf chatFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat file: %w", err)
	}
	if cf.Head != nil && *cf.Head == "" {
		return nil, nil
	}
	return cf.Head, nil
}

// SaveHead writes to a temp file and renames it over the old one, so a crash
// never leaves a half-written head behind.
func (s *HeadStore) SaveHead(ctx context.Context, head *domain.MessageID) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create chat directory: %w", err)
	}

	data, err := json.MarshalIndent(chatFile{Head: head}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chat file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".chat-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp chat file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write chat file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close chat file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace chat file: %w", err)
	}
	return nil
}

var _ domain.HeadStore = (*HeadStore)(nil)
