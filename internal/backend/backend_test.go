package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenUnknown(t *testing.T) {
	_, err := Open("etcd", nil, "customers")
	assert.NotNil(t, err)
}

func TestOpenInMemory(t *testing.T) {
	b, err := Open(InMemory, nil, "customers")
	require.NoError(t, err)
	defer b.Close()

	id, err := b.NextID(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, int64(1), id)
}

func TestOpenSQLiteTablePerEntityType(t *testing.T) {
	props := map[string]string{"path": filepath.Join(t.TempDir(), "entitystore.db")}

	customers, err := Open(SQLite, props, "customers")
	require.NoError(t, err)
	defer customers.Close()

	events, err := Open(SQLite, props, "events")
	require.NoError(t, err)
	defer events.Close()

	ctx := context.Background()
	require.NoError(t, customers.Put(ctx, 1, []byte("customer")))

	_, found, err := events.Get(ctx, 1)
	assert.Nil(t, err)
	assert.False(t, found)

	// the caller's map is left alone
	assert.Equal(t, 1, len(props))
}

func TestOpenInitFailure(t *testing.T) {
	_, err := Open(CosmosDB, map[string]string{}, "customers")
	assert.NotNil(t, err)
}

func TestMetadata(t *testing.T) {
	md := Metadata(TableStorage, map[string]string{"storageAccountName": "acc"}, "events")
	assert.Equal(t, "events", md.Properties["entityType"])
	assert.Equal(t, "acc", md.Properties["storageAccountName"])

	md = Metadata(SQLite, nil, "events")
	assert.Equal(t, "events", md.Properties["table"])
}
