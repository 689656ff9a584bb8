package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

const lockStripes = 64

// Repository gives typed CRUD access to the entities of one type held by a Backend.
// Operations on the same identifier are serialized, operations on different
// identifiers run in parallel.
type Repository[T any, P EntityPtr[T]] struct {
	backend Backend
	opts    options
	locks   [lockStripes]sync.RWMutex
}

// NewRepository creates a repository on top of an initialized backend
func NewRepository[T any, P EntityPtr[T]](backend Backend, opts ...Option) *Repository[T, P] {
	o := options{codec: JSONCodec{}, hookTimeout: defaultHookTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.entityType == "" {
		var zero T
		o.entityType = fmt.Sprintf("%T", zero)
	}
	o.logger = o.logger.With("entityType", o.entityType)

	return &Repository[T, P]{
		backend: backend,
		opts:    o,
	}
}

// EntityType returns the name the repository uses for its entities
func (r *Repository[T, P]) EntityType() string {
	return r.opts.entityType
}

// Save inserts entities without identifier and overwrites entities with one.
// The entity passed in gets its identifier and version updated and is returned.
func (r *Repository[T, P]) Save(ctx context.Context, entity P) (P, error) {
	if entity == nil {
		return nil, newError(InvalidArgument, nil, "entity is nil")
	}

	id := entity.GetID()
	switch {
	case id < 0:
		return nil, newError(InvalidArgument, nil, "invalid identifier %d", id)
	case id == 0:
		return r.insert(ctx, entity)
	default:
		return r.update(ctx, entity)
	}
}

func (r *Repository[T, P]) insert(ctx context.Context, entity P) (P, error) {
	for {
		id, err := r.backend.NextID(ctx)
		if err != nil {
			return nil, r.backendError(err, "allocate identifier")
		}
		if id <= 0 {
			return nil, newError(InternalError, nil, "backend allocated invalid identifier %d", id)
		}

		data, inserted, err := r.insertAt(ctx, id, entity)
		if err != nil {
			return nil, err
		}
		if inserted {
			r.afterSave(ctx, id, 1, data)
			return entity, nil
		}

		// ids written through upsert are skipped
		r.opts.logger.DebugContext(ctx, "identifier already in use", "id", id)
	}
}

func (r *Repository[T, P]) insertAt(ctx context.Context, id int64, entity P) ([]byte, bool, error) {
	mu := r.lock(id)
	mu.Lock()
	defer mu.Unlock()

	_, found, err := r.backend.Get(ctx, id)
	if err != nil {
		return nil, false, r.backendError(err, "check identifier %d", id)
	}
	if found {
		return nil, false, nil
	}

	prevVersion := entity.GetVersion()
	entity.SetID(id)
	entity.SetVersion(1)

	data, err := r.write(ctx, entity)
	if err != nil {
		entity.SetID(0)
		entity.SetVersion(prevVersion)
		return nil, false, err
	}

	r.opts.logger.DebugContext(ctx, "entity inserted", "id", id)
	return data, true, nil
}

func (r *Repository[T, P]) update(ctx context.Context, entity P) (P, error) {
	data, err := r.updateLocked(ctx, entity)
	if err != nil {
		return nil, err
	}
	r.afterSave(ctx, entity.GetID(), entity.GetVersion(), data)
	return entity, nil
}

func (r *Repository[T, P]) updateLocked(ctx context.Context, entity P) ([]byte, error) {
	id := entity.GetID()

	mu := r.lock(id)
	mu.Lock()
	defer mu.Unlock()

	stored, found, err := r.backend.Get(ctx, id)
	if err != nil {
		return nil, r.backendError(err, "load entity %d", id)
	}

	var version int64
	if found {
		current, err := r.decode(id, stored)
		if err != nil {
			return nil, err
		}
		if r.opts.concurrency == Optimistic && current.GetVersion() != entity.GetVersion() {
			return nil, newError(VersionConflict, nil,
				"entity %d has gone stale, version %d is stored but %d was given",
				id, current.GetVersion(), entity.GetVersion())
		}
		version = current.GetVersion() + 1
	} else {
		if !r.opts.upsert {
			return nil, newError(EntityNotFound, nil, "%s with id %d does not exist", r.opts.entityType, id)
		}
		version = 1
	}

	prevVersion := entity.GetVersion()
	entity.SetVersion(version)

	data, err := r.write(ctx, entity)
	if err != nil {
		entity.SetVersion(prevVersion)
		return nil, err
	}

	r.opts.logger.DebugContext(ctx, "entity saved", "id", id, "version", version, "inserted", !found)
	return data, nil
}

// SaveAll saves the entities in order and stops at the first failure.
// The entities saved before the failure are returned with the error.
func (r *Repository[T, P]) SaveAll(ctx context.Context, entities []P) ([]P, error) {
	saved := make([]P, 0, len(entities))
	for _, e := range entities {
		res, err := r.Save(ctx, e)
		if err != nil {
			return saved, err
		}
		saved = append(saved, res)
	}
	return saved, nil
}

// FindByID returns the entity stored under id, found is false if there is none
func (r *Repository[T, P]) FindByID(ctx context.Context, id int64) (entity P, found bool, err error) {
	if id <= 0 {
		return nil, false, newError(InvalidArgument, nil, "invalid identifier %d", id)
	}

	mu := r.lock(id)
	mu.RLock()
	defer mu.RUnlock()

	data, found, err := r.backend.Get(ctx, id)
	if err != nil {
		return nil, false, r.backendError(err, "load entity %d", id)
	}
	if !found {
		return nil, false, nil
	}

	entity, err = r.decode(id, data)
	if err != nil {
		return nil, false, err
	}
	return entity, true, nil
}

// ExistsByID reports whether an entity is stored under id
func (r *Repository[T, P]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, newError(InvalidArgument, nil, "invalid identifier %d", id)
	}

	mu := r.lock(id)
	mu.RLock()
	defer mu.RUnlock()

	_, found, err := r.backend.Get(ctx, id)
	if err != nil {
		return false, r.backendError(err, "check identifier %d", id)
	}
	return found, nil
}

// FindAllByID returns the entities stored under ids, unknown ids are skipped
func (r *Repository[T, P]) FindAllByID(ctx context.Context, ids []int64) ([]P, error) {
	result := make([]P, 0, len(ids))
	for _, id := range ids {
		e, found, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			result = append(result, e)
		}
	}
	return result, nil
}

// FindAll returns a snapshot of all entities ordered by identifier,
// which is insertion order for identifiers assigned by the store.
// Entities inserted through WithUpsert under an explicit identifier sort by
// that identifier, not by when they were inserted.
func (r *Repository[T, P]) FindAll(ctx context.Context) ([]P, error) {
	records, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]P, 0, len(records))
	for _, rec := range records {
		e, err := r.decode(rec.ID, rec.Data)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

// FindPage returns the window of FindAll selected by p
func (r *Repository[T, P]) FindPage(ctx context.Context, p Pagination) ([]P, error) {
	if p == nil || p.Offset() < 0 || p.Limit() < 0 {
		return nil, newError(InvalidArgument, nil, "invalid pagination")
	}

	records, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	start := p.Offset()
	if start > int64(len(records)) {
		start = int64(len(records))
	}
	end := int64(len(records))
	if p.Limit() > 0 && p.Limit() < end-start {
		end = start + p.Limit()
	}

	result := make([]P, 0, end-start)
	for _, rec := range records[start:end] {
		e, err := r.decode(rec.ID, rec.Data)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

// Count returns the number of stored entities
func (r *Repository[T, P]) Count(ctx context.Context) (int64, error) {
	records, err := r.backend.Scan(ctx)
	if err != nil {
		return 0, r.backendError(err, "scan entities")
	}
	return int64(len(records)), nil
}

// DeleteByID removes the entity stored under id.
// Unknown ids are ignored unless the repository was built WithStrictDelete.
func (r *Repository[T, P]) DeleteByID(ctx context.Context, id int64) error {
	if id <= 0 {
		return newError(InvalidArgument, nil, "invalid identifier %d", id)
	}
	return r.deleteID(ctx, id, r.opts.strictDelete)
}

// Delete removes the given entity
func (r *Repository[T, P]) Delete(ctx context.Context, entity P) error {
	if entity == nil {
		return newError(InvalidArgument, nil, "entity is nil")
	}
	return r.DeleteByID(ctx, entity.GetID())
}

// DeleteAll removes every stored entity
func (r *Repository[T, P]) DeleteAll(ctx context.Context) error {
	records, err := r.backend.Scan(ctx)
	if err != nil {
		return r.backendError(err, "scan entities")
	}
	for _, rec := range records {
		if err := r.deleteID(ctx, rec.ID, false); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository[T, P]) deleteID(ctx context.Context, id int64, strict bool) error {
	deleted, err := r.deleteLocked(ctx, id, strict)
	if err != nil || !deleted {
		return err
	}

	if len(r.opts.hooks) == 0 {
		return nil
	}
	hctx, cancel := r.hookContext(ctx)
	defer cancel()
	for _, h := range r.opts.hooks {
		if err := h.AfterDelete(hctx, r.opts.entityType, id); err != nil {
			r.opts.logger.ErrorContext(ctx, "delete hook failed", "id", id, "error", err)
		}
	}
	return nil
}

func (r *Repository[T, P]) deleteLocked(ctx context.Context, id int64, strict bool) (bool, error) {
	mu := r.lock(id)
	mu.Lock()
	defer mu.Unlock()

	_, found, err := r.backend.Get(ctx, id)
	if err != nil {
		return false, r.backendError(err, "check identifier %d", id)
	}
	if !found {
		if strict {
			return false, newError(EntityNotFound, nil, "%s with id %d does not exist", r.opts.entityType, id)
		}
		return false, nil
	}

	if err := r.backend.Delete(ctx, id); err != nil {
		return false, r.backendError(err, "delete entity %d", id)
	}

	r.opts.logger.DebugContext(ctx, "entity deleted", "id", id)
	return true, nil
}

func (r *Repository[T, P]) scan(ctx context.Context) ([]Record, error) {
	records, err := r.backend.Scan(ctx)
	if err != nil {
		return nil, r.backendError(err, "scan entities")
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (r *Repository[T, P]) write(ctx context.Context, entity P) ([]byte, error) {
	data, err := r.opts.codec.Marshal(entity)
	if err != nil {
		return nil, newError(SerializationFailed, err, "encode %s %d", r.opts.entityType, entity.GetID())
	}
	if err := r.backend.Put(ctx, entity.GetID(), data); err != nil {
		return nil, r.backendError(err, "store entity %d", entity.GetID())
	}
	return data, nil
}

func (r *Repository[T, P]) decode(id int64, data []byte) (P, error) {
	var v T
	entity := P(&v)
	if err := r.opts.codec.Unmarshal(data, entity); err != nil {
		return nil, newError(SerializationFailed, err, "decode %s %d", r.opts.entityType, id)
	}
	entity.SetID(id)
	return entity, nil
}

// afterSave runs after the entity lock is released, so hooks may read the
// repository. Change events of one id carry the version to order them by.
func (r *Repository[T, P]) afterSave(ctx context.Context, id, version int64, data []byte) {
	if len(r.opts.hooks) == 0 {
		return
	}
	hctx, cancel := r.hookContext(ctx)
	defer cancel()
	for _, h := range r.opts.hooks {
		if err := h.AfterSave(hctx, r.opts.entityType, id, version, data); err != nil {
			r.opts.logger.ErrorContext(ctx, "save hook failed", "id", id, "error", err)
		}
	}
}

// hookContext outlives a canceled request, since the write already happened
func (r *Repository[T, P]) hookContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.opts.hookTimeout)
}

func (r *Repository[T, P]) backendError(err error, format string, args ...interface{}) error {
	var serr StoreError
	if errors.As(err, &serr) {
		return err
	}
	return newError(InternalError, err, format, args...)
}

func (r *Repository[T, P]) lock(id int64) *sync.RWMutex {
	return &r.locks[uint64(id)%lockStripes]
}
