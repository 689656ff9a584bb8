package inmemory

import (
	"context"
	"sync"
	"testing"

	"github.com/AndreasM009/entitystore-go/store"
	"github.com/stretchr/testify/assert"
)

var testMetadata = store.Metadata{
	Properties: make(map[string]string),
}

func TestPutGet(t *testing.T) {
	s := NewStore()
	err := s.Init(testMetadata)
	assert.Nil(t, err)

	ctx := context.Background()
	err = s.Put(ctx, 1, []byte("Hello World"))
	assert.Nil(t, err)

	data, found, err := s.Get(ctx, 1)
	assert.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, "Hello World", string(data))

	data, found, err = s.Get(ctx, 2)
	assert.Nil(t, err)
	assert.False(t, found)
	assert.Nil(t, data)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Init(testMetadata))

	ctx := context.Background()
	payload := []byte("Hello World")
	assert.Nil(t, s.Put(ctx, 1, payload))
	payload[0] = 'X'

	data, _, err := s.Get(ctx, 1)
	assert.Nil(t, err)
	assert.Equal(t, "Hello World", string(data))

	data[0] = 'Y'
	again, _, _ := s.Get(ctx, 1)
	assert.Equal(t, "Hello World", string(again))
}

func TestDelete(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Init(testMetadata))

	ctx := context.Background()
	assert.Nil(t, s.Put(ctx, 1, []byte("Hello World")))
	assert.Nil(t, s.Delete(ctx, 1))

	_, found, err := s.Get(ctx, 1)
	assert.Nil(t, err)
	assert.False(t, found)

	// absent ids are ignored
	assert.Nil(t, s.Delete(ctx, 1))
}

func TestScanOrderedByID(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Init(testMetadata))

	ctx := context.Background()
	for _, id := range []int64{3, 1, 2} {
		assert.Nil(t, s.Put(ctx, id, []byte{byte(id)}))
	}

	records, err := s.Scan(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 3, len(records))
	for i, rec := range records {
		assert.Equal(t, int64(i+1), rec.ID)
		assert.Equal(t, []byte{byte(i + 1)}, rec.Data)
	}
}

func TestNextIDConcurrent(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Init(testMetadata))

	const n = 100
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.NextID(context.Background())
			assert.Nil(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Equal(t, n, len(seen))
}

func TestCanceledContext(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Init(testMetadata))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotNil(t, s.Put(ctx, 1, []byte("x")))
	_, err := s.NextID(ctx)
	assert.NotNil(t, err)
}
