package store

import "context"

// Metadata configures a backend, keys are backend specific
type Metadata struct {
	Properties map[string]string
}

// Record is a raw entity as held by a backend
type Record struct {
	ID   int64
	Data []byte
}

// Backend is the contract of a durable medium for one entity type.
// Get reports absence with found == false and a nil error.
// Delete of an absent id is not an error.
type Backend interface {
	Init(metadata Metadata) error
	Put(ctx context.Context, id int64, data []byte) error
	Get(ctx context.Context, id int64) (data []byte, found bool, err error)
	Delete(ctx context.Context, id int64) error
	Scan(ctx context.Context) ([]Record, error)
	NextID(ctx context.Context) (int64, error)
	Close() error
}
