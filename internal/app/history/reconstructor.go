package history

import (
	"context"
	"fmt"
	"slices"

	"github.com/PabloGalante/singlechat/internal/domain"
)

// DefaultMaxDepth bounds a walk when no limit is configured.
const DefaultMaxDepth = 10000

// Reconstructor rebuilds the linear conversation by following parent links.
type Reconstructor struct {
	store    domain.MessageStore
	maxDepth int
}

func NewReconstructor(store domain.MessageStore, maxDepth int) *Reconstructor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Reconstructor{
		store:    store,
		maxDepth: maxDepth,
	}
}

// Reconstruct returns the chain ending at head, oldest first.
// A nil head yields an empty history without touching the store. Any failed
// lookup aborts the walk and no partial history is returned. A revisited
// identifier or a chain longer than maxDepth fails with ErrCycleSuspected.
func (r *Reconstructor) Reconstruct(ctx context.Context, head *domain.MessageID) ([]domain.Message, error) {
	messages := []domain.Message{}
	seen := make(map[domain.MessageID]struct{})

	for current := head; current != nil; {
		id := *current

		if _, ok := seen[id]; ok {
			return nil, domain.NewStoreError("reconstruct", id, domain.ErrCycleSuspected,
				fmt.Errorf("identifier revisited after %d messages", len(messages)))
		}
		if len(messages) >= r.maxDepth {
			return nil, domain.NewStoreError("reconstruct", id, domain.ErrCycleSuspected,
				fmt.Errorf("chain exceeds %d messages", r.maxDepth))
		}
		seen[id] = struct{}{}

		msg, err := r.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
		current = msg.Parent
	}

	slices.Reverse(messages)
	return messages, nil
}
