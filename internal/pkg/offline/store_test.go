package offline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIDSpacesAreDisjoint(t *testing.T) {
	server := ServerID(42)
	client := ClientID("local-abc")

	assert.False(t, server.IsPending())
	assert.True(t, client.IsPending())
	assert.Equal(t, "42", server.String())
	assert.Equal(t, "local-abc", client.String())

	parsed, err := ParseRecordID("42")
	require.NoError(t, err)
	assert.Equal(t, server, parsed)

	parsed, err = ParseRecordID("local-abc")
	require.NoError(t, err)
	assert.Equal(t, client, parsed)

	_, err = ParseRecordID("not-an-id")
	assert.Error(t, err)
}

func TestMemoryStoreRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	record := LocalRecord{
		ID:          ClientID("local-1"),
		ServiceName: "Streamflix",
		Amount:      decimal.NewFromInt(1200),
		Pending:     true,
		ClientID:    "local-1",
	}
	require.NoError(t, store.PutRecord(ctx, record))

	records, err := store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Streamflix", records[0].ServiceName)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(1200)))

	require.NoError(t, store.DeleteRecord(ctx, ClientID("local-1")))
	records, err = store.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryStoreMutationQueueIsFIFO(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, name := range []string{"first", "second", "third"} {
		_, err := store.AppendMutation(ctx, Mutation{
			Action:   ActionAdd,
			ClientID: "local-" + name,
			Payload:  SubscriptionPayload{ServiceName: name},
		})
		require.NoError(t, err)
	}

	mutations, err := store.Mutations(ctx)
	require.NoError(t, err)
	require.Len(t, mutations, 3)
	assert.Equal(t, "first", mutations[0].Payload.ServiceName)
	assert.Equal(t, "second", mutations[1].Payload.ServiceName)
	assert.Equal(t, "third", mutations[2].Payload.ServiceName)
	assert.Less(t, mutations[0].Key, mutations[1].Key)
	assert.Less(t, mutations[1].Key, mutations[2].Key)

	// Deleting the middle entry must not disturb the order of the rest.
	require.NoError(t, store.DeleteMutation(ctx, mutations[1].Key))
	mutations, err = store.Mutations(ctx)
	require.NoError(t, err)
	require.Len(t, mutations, 2)
	assert.Equal(t, "first", mutations[0].Payload.ServiceName)
	assert.Equal(t, "third", mutations[1].Payload.ServiceName)
}

func TestMemoryStoreClearKeepsQueue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.PutRecord(ctx, LocalRecord{ID: ServerID(1)}))
	_, err := store.AppendMutation(ctx, Mutation{Action: ActionAdd, ClientID: "local-x"})
	require.NoError(t, err)

	require.NoError(t, store.ClearRecords(ctx))

	records, err := store.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	mutations, err := store.Mutations(ctx)
	require.NoError(t, err)
	assert.Len(t, mutations, 1)
}
