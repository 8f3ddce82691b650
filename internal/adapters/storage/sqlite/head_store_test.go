package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/singlechat/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/singlechat/internal/domain"
)

func TestHeadStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	store, err := sqlite.NewHeadStore(ctx, path)
	require.NoError(t, err)

	head, err := store.LoadHead(ctx)
	require.NoError(t, err)
	assert.Nil(t, head)

	require.NoError(t, store.SaveHead(ctx, domain.IDPtr("first")))
	require.NoError(t, store.SaveHead(ctx, domain.IDPtr("second")))
	require.NoError(t, store.Close())

	reopened, err := sqlite.NewHeadStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	head, err = reopened.LoadHead(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, domain.MessageID("second"), *head)

	require.NoError(t, reopened.SaveHead(ctx, nil))
	head, err = reopened.LoadHead(ctx)
	require.NoError(t, err)
	assert.Nil(t, head)
}
