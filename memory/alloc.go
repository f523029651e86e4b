package memory

import (
	"sync/atomic"

	"github.com/apache/arrow/go/v17/arrow/memory"
)

// TrackedAllocator wraps an Arrow allocator with running usage counters.
// The dataset flush path rebuilds the whole table in memory, so peak
// allocation is the number worth watching on multi-GB datasets.
type TrackedAllocator struct {
	memory.Allocator
	current atomic.Int64
	peak    atomic.Int64
}

// Stats is a snapshot of allocator usage in bytes.
type Stats struct {
	CurrentBytes int64
	PeakBytes    int64
}

// NewTrackedAllocator creates a tracked allocator backed by the Go allocator.
func NewTrackedAllocator() *TrackedAllocator {
	return &TrackedAllocator{Allocator: memory.NewGoAllocator()}
}

// Allocate allocates size bytes and records the growth.
func (t *TrackedAllocator) Allocate(size int) []byte {
	buf := t.Allocator.Allocate(size)
	t.add(int64(len(buf)))
	return buf
}

// Reallocate resizes b to size bytes and records the delta.
func (t *TrackedAllocator) Reallocate(size int, b []byte) []byte {
	old := int64(len(b))
	buf := t.Allocator.Reallocate(size, b)
	t.add(int64(len(buf)) - old)
	return buf
}

// Free releases b and records the shrink.
func (t *TrackedAllocator) Free(b []byte) {
	t.add(-int64(len(b)))
	t.Allocator.Free(b)
}

// GetStats returns current and peak usage.
func (t *TrackedAllocator) GetStats() Stats {
	return Stats{
		CurrentBytes: t.current.Load(),
		PeakBytes:    t.peak.Load(),
	}
}

func (t *TrackedAllocator) add(delta int64) {
	cur := t.current.Add(delta)
	for {
		peak := t.peak.Load()
		if cur <= peak || t.peak.CompareAndSwap(peak, cur) {
			return
		}
	}
}
