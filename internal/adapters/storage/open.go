// Package storage selects the message backend and head store named by the
// configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/PabloGalante/singlechat/internal/adapters/storage/file"
	"github.com/PabloGalante/singlechat/internal/adapters/storage/firestore"
	"github.com/PabloGalante/singlechat/internal/adapters/storage/kv"
	"github.com/PabloGalante/singlechat/internal/adapters/storage/kvserver"
	"github.com/PabloGalante/singlechat/internal/adapters/storage/memory"
	"github.com/PabloGalante/singlechat/internal/adapters/storage/redis"
	"github.com/PabloGalante/singlechat/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/singlechat/internal/config"
	"github.com/PabloGalante/singlechat/internal/domain"
)

// OpenBackend opens the raw key/value engine behind the store protocol.
// The remote backend has no local engine; use OpenMessageStore for it.
func OpenBackend(ctx context.Context, cfg config.KVConfig) (kvserver.Backend, error) {
	switch cfg.Backend {
	case config.KVMemory:
		return memory.NewBackend(), nil
	case config.KVRedis:
		return redis.New(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case config.KVFirestore:
		return firestore.NewStore(ctx, cfg.FirestoreProject, cfg.FirestoreCollection)
	default:
		return nil, fmt.Errorf("kv backend %q has no local engine", cfg.Backend)
	}
}

// MessageStore is a kv.Client plus whatever must be closed with it.
type MessageStore struct {
	*kv.Client
	backend kvserver.Backend
}

func (s *MessageStore) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// OpenMessageStore returns a store client speaking the envelope protocol,
// either to an in-process server over a local backend or to a remote one.
func OpenMessageStore(ctx context.Context, cfg config.KVConfig) (*MessageStore, error) {
	if cfg.Backend == config.KVRemote {
		return &MessageStore{Client: kv.NewClient(kv.NewHTTPTransport(cfg.RemoteURL, cfg.Timeout))}, nil
	}

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &MessageStore{
		Client:  kv.NewClient(kv.NewLocalTransport(kvserver.New(backend))),
		backend: backend,
	}, nil
}

// HeadStore is a domain.HeadStore that may hold resources.
type HeadStore interface {
	domain.HeadStore
	Close() error
}

type nopCloser struct{ domain.HeadStore }

func (nopCloser) Close() error { return nil }

// OpenHeadStore opens the conversation head store, resolving the auto
// backend against the message store.
func OpenHeadStore(ctx context.Context, cfg config.Config) (HeadStore, error) {
	switch backend := cfg.ResolvedHeadBackend(); backend {
	case config.HeadFile:
		return nopCloser{file.NewHeadStore(cfg.Head.Path)}, nil
	case config.HeadSQLite:
		return sqlite.NewHeadStore(ctx, cfg.Head.Path)
	case config.HeadFirestore:
		return firestore.NewStore(ctx, cfg.KV.FirestoreProject, cfg.KV.FirestoreCollection)
	case config.HeadMemory:
		return nopCloser{memory.NewHeadStore()}, nil
	default:
		return nil, fmt.Errorf("unknown head backend %q", backend)
	}
}
