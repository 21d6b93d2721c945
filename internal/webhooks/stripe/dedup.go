package stripewebhook

import (
	"context"
	"errors"
	"sync"
)

// DefaultDedupCapacity bounds the in-memory deduplicator.
const DefaultDedupCapacity = 1000

var errEventIDRequired = errors.New("event id is required")

// Deduplicator remembers which provider events were already accepted.
type Deduplicator interface {
	HasProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	// CheckAndMark atomically marks eventID and reports whether it was already marked.
	CheckAndMark(ctx context.Context, eventID string) (alreadyProcessed bool, err error)
	// Forget drops eventID so a redelivery is processed again.
	Forget(ctx context.Context, eventID string) error
}

// MemoryDeduplicator is a process-local bounded set. When it grows past capacity the
// oldest half of the ids is evicted.
type MemoryDeduplicator struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

func NewMemoryDeduplicator(capacity int) *MemoryDeduplicator {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &MemoryDeduplicator{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

func (d *MemoryDeduplicator) HasProcessed(_ context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errEventIDRequired
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[eventID]
	return ok, nil
}

func (d *MemoryDeduplicator) MarkProcessed(_ context.Context, eventID string) error {
	if eventID == "" {
		return errEventIDRequired
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markLocked(eventID)
	return nil
}

func (d *MemoryDeduplicator) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errEventIDRequired
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[eventID]; ok {
		return true, nil
	}
	d.markLocked(eventID)
	return false, nil
}

func (d *MemoryDeduplicator) Forget(_ context.Context, eventID string) error {
	if eventID == "" {
		return errEventIDRequired
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[eventID]; !ok {
		return nil
	}
	delete(d.seen, eventID)
	for i, id := range d.order {
		if id == eventID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len reports how many ids are currently remembered.
func (d *MemoryDeduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *MemoryDeduplicator) markLocked(eventID string) {
	if _, ok := d.seen[eventID]; ok {
		return
	}
	d.seen[eventID] = struct{}{}
	d.order = append(d.order, eventID)
	if len(d.order) <= d.capacity {
		return
	}

	evict := len(d.order) / 2
	for _, id := range d.order[:evict] {
		delete(d.seen, id)
	}
	kept := make([]string, len(d.order)-evict, d.capacity)
	copy(kept, d.order[evict:])
	d.order = kept
}
