package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/singlechat/internal/domain"
)

// HeadStore keeps the conversation head in memory.
type HeadStore struct {
	mu   sync.RWMutex
	head *domain.MessageID
}

func NewHeadStore() *HeadStore {
	return &HeadStore{}
}

func (s *HeadStore) LoadHead(ctx context.Context) (*domain.MessageID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.head == nil {
		return nil, nil
	}
	return domain.IDPtr(*s.head), nil
}

func (s *HeadStore) SaveHead(ctx context.Context, head *domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if head == nil {
		s.head = nil
		return nil
	}
	s.head = domain.IDPtr(*head)
	return nil
}

var _ domain.HeadStore = (*HeadStore)(nil)
