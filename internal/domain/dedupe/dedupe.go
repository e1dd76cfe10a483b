// Package dedupe tracks which (user, problem) pairs already have a kept
// submission so that later resubmissions are skipped.
package dedupe

import (
	"context"
	"sync"

	"github.com/okian/antiplag/internal/domain/model"
)

// Deduper records seen submission keys.
type Deduper interface {
	// SeenAndRecord reports whether key was already recorded and records it
	// if it was not. The first caller for a key gets false.
	SeenAndRecord(ctx context.Context, key model.SubmissionKey) bool

	// Unrecord forgets key, e.g. when copying the kept file failed.
	Unrecord(ctx context.Context, key model.SubmissionKey)

	Size() int
}

type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[model.SubmissionKey]struct{}
}

// NewInMemoryDeduper creates an unbounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	o := options{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	return &inMemoryDeduper{seen: make(map[model.SubmissionKey]struct{}, o.capacity)}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key model.SubmissionKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key model.SubmissionKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
