package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/storefront/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "carts.db"))
	require.NoError(t, err)
	defer s.Close()

	storagetest.Run(t, s)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carts.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "cart", []byte(`[{"product_id":"A"}]`)))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"product_id":"A"}]`, string(v))
}
