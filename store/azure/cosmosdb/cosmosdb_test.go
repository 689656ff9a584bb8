package cosmosdb

import (
	"context"
	"errors"
	"flag"
	"testing"

	"github.com/AndreasM009/entitystore-go/store"
	"github.com/a8m/documentdb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	urlFlag       = flag.String("url", "", "CosmosDB URI")
	masterKeyFlag = flag.String("masterKey", "", "Cosmos account MasterKey")
	databaseFlag  = flag.String("database", "", "Cosmos DB database name")
	containerFlag = flag.String("container", "", "CosmosDb container name, partitioned by /partition")
)

func initMetadata(t *testing.T) store.Metadata {
	t.Helper()
	if *urlFlag == "" {
		t.Skip("-url not set")
	}

	return store.Metadata{
		Properties: map[string]string{
			"url":       *urlFlag,
			"masterKey": *masterKeyFlag,
			"database":  *databaseFlag,
			"container": *containerFlag,
			// a fresh partition per test keeps runs independent
			"entityType": "customer-" + uuid.New().String(),
		},
	}
}

func newTestStore(t *testing.T) store.Backend {
	t.Helper()
	metadata := initMetadata(t)

	cosmos := NewStore()
	require.NoError(t, cosmos.Init(metadata))
	return cosmos
}

func TestInitMissingProperties(t *testing.T) {
	cosmos := NewStore()
	err := cosmos.Init(store.Metadata{Properties: map[string]string{}})
	assert.NotNil(t, err)
}

func TestHasStatus(t *testing.T) {
	assert.True(t, hasStatus(documentdb.RequestError{Code: "412"}, "412"))
	assert.True(t, hasStatus(&documentdb.RequestError{Code: "PreconditionFailed"}, "412"))
	assert.True(t, hasStatus(documentdb.RequestError{Code: "Conflict"}, "409"))
	assert.False(t, hasStatus(documentdb.RequestError{Code: "NotFound"}, "409"))
	assert.False(t, hasStatus(errors.New("412"), "412"))
}

func TestDocumentIDs(t *testing.T) {
	assert.Equal(t, "customer--42", makeEntityDocumentID("customer", 42))
	assert.Equal(t, "customer--sequence", makeSequenceDocumentID("customer"))
}

func TestPutGetDelete(t *testing.T) {
	cosmos := newTestStore(t)
	ctx := context.Background()

	err := cosmos.Put(ctx, 1, []byte(`{"name":"Alice"}`))
	assert.Nil(t, err)

	data, found, err := cosmos.Get(ctx, 1)
	assert.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"name":"Alice"}`, string(data))

	assert.Nil(t, cosmos.Delete(ctx, 1))

	_, found, err = cosmos.Get(ctx, 1)
	assert.Nil(t, err)
	assert.False(t, found)

	assert.Nil(t, cosmos.Delete(ctx, 1))
}

func TestScan(t *testing.T) {
	cosmos := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		assert.Nil(t, cosmos.Put(ctx, id, []byte("x")))
	}

	records, err := cosmos.Scan(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 3, len(records))
}

func TestNextID(t *testing.T) {
	cosmos := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, err := cosmos.NextID(ctx)
		assert.Nil(t, err)
		assert.Equal(t, want, id)
	}
}
