package memory

import "testing"

func TestTrackedAllocatorCounts(t *testing.T) {
	alloc := NewTrackedAllocator()

	a := alloc.Allocate(1024)
	b := alloc.Allocate(2048)

	stats := alloc.GetStats()
	if stats.CurrentBytes != 3072 {
		t.Errorf("CurrentBytes = %d, want 3072", stats.CurrentBytes)
	}
	if stats.PeakBytes != 3072 {
		t.Errorf("PeakBytes = %d, want 3072", stats.PeakBytes)
	}

	alloc.Free(a)
	alloc.Free(b)

	stats = alloc.GetStats()
	if stats.CurrentBytes != 0 {
		t.Errorf("CurrentBytes after frees = %d, want 0", stats.CurrentBytes)
	}
	if stats.PeakBytes != 3072 {
		t.Errorf("PeakBytes after frees = %d, want 3072", stats.PeakBytes)
	}
}

func TestTrackedAllocatorReallocate(t *testing.T) {
	alloc := NewTrackedAllocator()

	buf := alloc.Allocate(100)
	buf = alloc.Reallocate(300, buf)

	if got := alloc.GetStats().CurrentBytes; got != 300 {
		t.Errorf("CurrentBytes after realloc = %d, want 300", got)
	}
	alloc.Free(buf)
}
