package pca_test

import (
	"context"
	"os"
	"testing"

	"github.com/gematik/pca/pkg/pca"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
)

func testCardStore(t *testing.T, store pca.CardStore) {
	t.Helper()
	ctx := context.Background()
	keys := testKeys(t)
	card := provisionCard(t, keys, pca.DefaultInfo())
	card.LastSequence = pca.Sequence{0x26, 0x10, 0x15, 0x13, 0x45, 0x07, 0x02}

	_, err := store.GetCard(ctx, card.ID)
	assert.ErrorIs(t, err, pca.ErrCardNotFound)

	require.NoError(t, store.PutCard(ctx, card))
	loaded, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)

	assert.Equal(t, card.ID, loaded.ID)
	assert.Equal(t, card.Info, loaded.Info)
	assert.Equal(t, card.Issuer, loaded.Issuer)
	assert.Equal(t, card.LastSequence, loaded.LastSequence)
	assert.True(t, card.CreatedAt.Equal(loaded.CreatedAt))

	want, err := card.Record.MarshalBinary()
	require.NoError(t, err)
	got, err := loaded.Record.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ids, err := store.ListCards(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, card.ID)
}

func TestMemoryCardStore(t *testing.T) {
	testCardStore(t, pca.NewMemoryCardStore())
}

func TestValkeyCardStore(t *testing.T) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		t.Skip("VALKEY_ADDR not set")
	}
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	testCardStore(t, pca.NewValkeyCardStore(client))
}
