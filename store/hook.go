package store

import "context"

// Hook is notified after a write reached the backend.
// A failing hook does not undo the write.
type Hook interface {
	AfterSave(ctx context.Context, entityType string, id, version int64, data []byte) error
	AfterDelete(ctx context.Context, entityType string, id int64) error
}
