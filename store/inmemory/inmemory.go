package inmemory

import (
	"context"
	"sync/atomic"

	"github.com/AndreasM009/entitystore-go/store"
	"github.com/zhangyunhao116/skipmap"
)

type entityMap = skipmap.FuncMap[int64, []byte]

type inmemory struct {
	entities *entityMap
	sequence atomic.Int64
}

// NewStore creates a new in memory backend
func NewStore() store.Backend {
	s := &inmemory{}
	s.entities = newEntityMap()
	return s
}

func newEntityMap() *entityMap {
	return skipmap.NewFunc[int64, []byte](func(a, b int64) bool {
		return a < b
	})
}

func (s *inmemory) Init(metadata store.Metadata) error {
	s.entities = newEntityMap()
	s.sequence.Store(0)
	return nil
}

func (s *inmemory) Put(ctx context.Context, id int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.entities.Store(id, clone(data))
	return nil
}

func (s *inmemory) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, ok := s.entities.Load(id)
	if !ok {
		return nil, false, nil
	}
	return clone(data), true, nil
}

func (s *inmemory) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.entities.Delete(id)
	return nil
}

func (s *inmemory) Scan(ctx context.Context) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := make([]store.Record, 0, s.entities.Len())
	s.entities.Range(func(id int64, data []byte) bool {
		records = append(records, store.Record{ID: id, Data: clone(data)})
		return true
	})
	return records, nil
}

func (s *inmemory) NextID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.sequence.Add(1), nil
}

func (s *inmemory) Close() error {
	return nil
}

// stored slices are never handed out, callers may modify what they get
func clone(data []byte) []byte {
	c := make([]byte, len(data))
	copy(c, data)
	return c
}
