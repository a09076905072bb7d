// Package logging provides the structured logger used by shard.Manager.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with field helpers for the shard component.
// The hnsw.Index itself never logs; it is a pure synchronous data structure.
type Logger struct {
	*slog.Logger
}

// New creates a Logger around the given handler. A nil handler falls back to
// a text handler on stderr at info level.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSON creates a Logger that emits JSON-formatted logs at level.
func NewJSON(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewText creates a Logger that emits human-readable text logs at level.
func NewText(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// Noop creates a Logger that discards everything.
func Noop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)}))}
}

// WithShard attaches a shard key field.
func (l *Logger) WithShard(shard string) *Logger {
	return &Logger{Logger: l.Logger.With("shard", shard)}
}

// WithOp attaches an operation-name field.
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{Logger: l.Logger.With("op", op)}
}

// LogInsert logs a ShardManager insert.
func (l *Logger) LogInsert(ctx context.Context, shard, extID string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed", "shard", shard, "id", extID, "error", err)
		return
	}
	l.DebugContext(ctx, "insert completed", "shard", shard, "id", extID)
}

// LogSearch logs a ShardManager fan-out search.
func (l *Logger) LogSearch(ctx context.Context, k, shardsQueried, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "k", k, "shards", shardsQueried, "error", err)
		return
	}
	l.DebugContext(ctx, "search completed", "k", k, "shards", shardsQueried, "results", resultsFound)
}

// LogFlush logs a ShardManager flush.
func (l *Logger) LogFlush(ctx context.Context, shard string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed", "shard", shard, "error", err)
		return
	}
	l.DebugContext(ctx, "flush completed", "shard", shard, "bytes", bytes)
}

// LogEvict logs an LRU eviction of a resident shard.
func (l *Logger) LogEvict(ctx context.Context, shard string, dirty bool, err error) {
	if err != nil {
		l.WarnContext(ctx, "evict failed", "shard", shard, "dirty", dirty, "error", err)
		return
	}
	l.InfoContext(ctx, "evicted shard", "shard", shard, "dirty", dirty)
}

// LogLoad logs a shard load from the store.
func (l *Logger) LogLoad(ctx context.Context, shard string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed", "shard", shard, "error", err)
		return
	}
	l.DebugContext(ctx, "load completed", "shard", shard, "size", size)
}
