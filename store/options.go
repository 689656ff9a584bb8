package store

import (
	"log/slog"
	"time"
)

const defaultHookTimeout = 5 * time.Second

// ConcurrencyControl selects how updates of existing entities are checked
type ConcurrencyControl int

const (
	// None overwrites whatever version is stored
	None ConcurrencyControl = iota
	// Optimistic rejects updates whose version is not the stored one
	Optimistic
)

type options struct {
	concurrency  ConcurrencyControl
	upsert       bool
	strictDelete bool
	codec        Codec
	hooks        []Hook
	logger       *slog.Logger
	entityType   string
	hookTimeout  time.Duration
}

// Option configures a Repository
type Option func(*options)

// WithConcurrency sets the concurrency control used by Save on existing entities
func WithConcurrency(c ConcurrencyControl) Option {
	return func(o *options) { o.concurrency = c }
}

// WithUpsert makes Save insert entities whose identifier is unknown
// instead of failing with EntityNotFound.
func WithUpsert() Option {
	return func(o *options) { o.upsert = true }
}

// WithStrictDelete makes DeleteByID fail with EntityNotFound for unknown ids
func WithStrictDelete() Option {
	return func(o *options) { o.strictDelete = true }
}

// WithCodec replaces the JSON codec
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithHooks registers hooks run after successful writes
func WithHooks(hooks ...Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEntityType names the entity type in logs and hook calls
func WithEntityType(name string) Option {
	return func(o *options) { o.entityType = name }
}

// WithHookTimeout bounds how long hooks of one write may take
func WithHookTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.hookTimeout = d
		}
	}
}
