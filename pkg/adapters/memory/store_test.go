package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/sketchy/pkg/adapters/memory"
	"github.com/aretw0/sketchy/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunRecordStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	data := []byte("abc")
	require.NoError(t, store.Save(ctx, "k", data))
	data[0] = 'z'

	loaded, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(loaded))

	loaded[1] = 'z'
	again, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}
