package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveThenLoad(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_, _, found, err := m.Load(ctx, "arn1", "e1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Save(ctx, "arn1", "e1", []byte("payload"), 2))

	data, version, found, err := m.Load(ctx, "arn1", "e1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, 2, version)
}

func TestMemoryStore_KeysAreIsolatedPerStreamAndEnumerator(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, "arn1", "e1", []byte("a"), 1))
	require.NoError(t, m.Save(ctx, "arn1", "e2", []byte("b"), 1))
	require.NoError(t, m.Save(ctx, "arn2", "e1", []byte("c"), 1))

	data, _, _, err := m.Load(ctx, "arn1", "e1")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)

	data, _, _, err = m.Load(ctx, "arn1", "e2")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)

	data, _, _, err = m.Load(ctx, "arn2", "e1")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), data)
}
