// Package storagetest holds the behaviour every storage.Storage must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/storefront/internal/storage"
)

// Run exercises s against the Storage contract.
func Run(t *testing.T, s storage.Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("MissingKey", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "cart:1", []byte(`[1]`)))
		require.NoError(t, s.Set(ctx, "cart:1", []byte(`[1,2]`)))

		v, err := s.Get(ctx, "cart:1")
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, string(v))
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "cart:2", []byte(`[]`)))
		require.NoError(t, s.Remove(ctx, "cart:2"))
		require.NoError(t, s.Remove(ctx, "cart:2"))

		_, err := s.Get(ctx, "cart:2")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
