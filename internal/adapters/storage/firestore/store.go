package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/singlechat/internal/adapters/storage/kvserver"
	"github.com/PabloGalante/singlechat/internal/domain"
)

const (
	defaultMessagesCollection = "messages"
	chatsCollection           = "chats"
	chatDocID                 = "chat"
)

type Store struct {
	client   *firestore.Client
	messages string
	now      func() time.Time
}

// NewStore creates a Firestore store.
// collection defaults to "messages"; the head lives in chats/chat.
func NewStore(ctx context.Context, projectID, collection string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	if collection == "" {
		collection = defaultMessagesCollection
	}

	return &Store{client: client, messages: collection, now: time.Now}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) valueDoc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.messages).Doc(key)
}

func (s *Store) chatDoc() *firestore.DocumentRef {
	return s.client.Collection(chatsCollection).Doc(chatDocID)
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type valueDoc struct {
	Value     []byte    `firestore:"value"`
	CreatedAt time.Time `firestore:"created_at"`
}

type chatDoc struct {
	Head      *string   `firestore:"head"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// ─────────────────────────────────────────
// kvserver.Backend implementation
// ─────────────────────────────────────────

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	snap, err := s.valueDoc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, kvserver.ErrKeyNotFound
		}
		return nil, fmt.Errorf("firestore Get: %w", err)
	}

	var doc valueDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore Get decode: %w", err)
	}
	return doc.Value, nil
}

// PutIfAbsent uses Create, which fails with AlreadyExists for a taken key.
func (s *Store) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	_, err := s.valueDoc(key).Create(ctx, valueDoc{
		Value:     value,
		CreatedAt: s.now(),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return true, nil
		}
		return false, fmt.Errorf("firestore PutIfAbsent: %w", err)
	}
	return false, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// domain.HeadStore implementation
// ─────────────────────────────────────────

func (s *Store) LoadHead(ctx context.Context) (*domain.MessageID, error) {
	snap, err := s.chatDoc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore LoadHead: %w", err)
	}

	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore LoadHead decode: %w", err)
	}
	if doc.Head == nil || *doc.Head == "" {
		return nil, nil
	}
	return domain.IDPtr(domain.MessageID(*doc.Head)), nil
}

func (s *Store) SaveHead(ctx context.Context, head *domain.MessageID) error {
	doc := chatDoc{UpdatedAt: s.now()}
	if head != nil {
		v := string(*head)
		doc.Head = &v
	}

	if _, err := s.chatDoc().Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore SaveHead: %w", err)
	}
	return nil
}

var (
	_ kvserver.Backend = (*Store)(nil)
	_ domain.HeadStore = (*Store)(nil)
)
