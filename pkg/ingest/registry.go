package ingest

import (
	"context"
	"errors"
	"sync"

	"resultdb/pkg/logger"
)

// ErrWriterNotFound is returned when no writer is registered under a name.
var ErrWriterNotFound = errors.New("writer not found")

// ErrTypeMismatch is returned when a message does not match the registered
// writer's record type.
var ErrTypeMismatch = errors.New("writer message type mismatch")

// Writer is one registered write pipeline.
type Writer interface {
	Name() string
	EnqueueAny(ctx context.Context, msg any, raw []byte) error
	Alive() bool
	Close(ctx context.Context) error
}

// Registry maps writer names to handles so request handlers can enqueue
// without depending on concrete writer types.
type Registry struct {
	mu      sync.RWMutex
	writers map[string]Writer
}

func NewRegistry() *Registry {
	return &Registry{writers: map[string]Writer{}}
}

// Register adds w under its name, replacing any previous entry.
func (r *Registry) Register(w Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[w.Name()] = w
}

// Get returns the writer registered under name.
func (r *Registry) Get(name string) (Writer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.writers[name]
	return w, ok
}

// Enqueue routes msg to the named writer. ErrWriterNotFound when the name
// is unknown; the writer reports ErrTypeMismatch for a wrong record type.
func (r *Registry) Enqueue(ctx context.Context, name string, msg any, raw []byte) error {
	w, ok := r.Get(name)
	if !ok {
		return ErrWriterNotFound
	}
	return w.EnqueueAny(ctx, msg, raw)
}

// AllAlive reports whether every registered writer is still running. Feeds
// the readiness check.
func (r *Registry) AllAlive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.writers {
		if !w.Alive() {
			return false
		}
	}
	return true
}

// ShutdownAll closes every writer under the shared deadline and returns
// the first error.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	r.mu.RLock()
	writers := make([]Writer, 0, len(r.writers))
	for _, w := range r.writers {
		writers = append(writers, w)
	}
	r.mu.RUnlock()

	var first error
	for _, w := range writers {
		if err := w.Close(ctx); err != nil {
			logger.Error("writer_shutdown_failed", "writer", w.Name(), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
