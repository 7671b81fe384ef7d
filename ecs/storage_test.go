package ecs

import (
	"sync/atomic"
	"testing"
)

type health struct {
	value int
}

func newTestStorage() (*Storage[health], *atomic.Uint64) {
	clock := &atomic.Uint64{}
	return &Storage[health]{clock: clock}, clock
}

func (s *Storage[T]) checkInvariants(t *testing.T) {
	t.Helper()
	if len(s.dense) != len(s.entities) || len(s.dense) != len(s.changed) || len(s.dense) != len(s.added) {
		t.Fatalf("parallel arrays out of sync: dense=%d entities=%d changed=%d added=%d",
			len(s.dense), len(s.entities), len(s.changed), len(s.added))
	}
	for pos, index := range s.entities {
		if s.sparse[index] != int32(pos) {
			t.Fatalf("sparse[%d]=%d, want %d", index, s.sparse[index], pos)
		}
	}
}

func TestStorageInsertRemoveRoundTrip(t *testing.T) {
	s, _ := newTestStorage()
	if added := s.Insert(3, health{value: 7}); !added {
		t.Fatalf("expected first insert to report added")
	}
	s.checkInvariants(t)
	v, ok := s.Remove(3)
	if !ok || v.value != 7 {
		t.Fatalf("expected to remove {7}, got %v (ok=%v)", v, ok)
	}
	if s.Contains(3) || s.Len() != 0 {
		t.Fatalf("storage should be empty after remove")
	}
	s.checkInvariants(t)
}

func TestStorageReplaceDoesNotGrow(t *testing.T) {
	s, _ := newTestStorage()
	s.Insert(0, health{value: 1})
	if added := s.Insert(0, health{value: 2}); added {
		t.Fatalf("replacing insert must not report added")
	}
	if s.Len() != 1 {
		t.Fatalf("expected len 1, got %d", s.Len())
	}
	v, _ := s.Get(0)
	if v.value != 2 {
		t.Fatalf("expected replaced value 2, got %d", v.value)
	}
}

func TestStorageSwapRemoveKeepsInvariants(t *testing.T) {
	s, _ := newTestStorage()
	for i := uint32(0); i < 8; i++ {
		s.Insert(i, health{value: int(i)})
	}
	// Remove from the middle: the last dense entry must take its place.
	s.Remove(2)
	s.checkInvariants(t)
	if s.Contains(2) {
		t.Fatalf("index 2 still contained after remove")
	}
	for i := uint32(0); i < 8; i++ {
		if i == 2 {
			continue
		}
		v, ok := s.Get(i)
		if !ok || v.value != int(i) {
			t.Fatalf("index %d: got %v (ok=%v)", i, v, ok)
		}
	}
}

func TestStorageIterYieldsEachOnce(t *testing.T) {
	s, _ := newTestStorage()
	for i := uint32(0); i < 16; i += 2 {
		s.Insert(i, health{value: int(i)})
	}
	seen := make(map[uint32]int)
	s.Iter(func(index uint32, v health) bool {
		seen[index]++
		return true
	})
	if len(seen) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(seen))
	}
	for index, n := range seen {
		if n != 1 {
			t.Fatalf("index %d yielded %d times", index, n)
		}
	}
}

func TestStorageChangeTicks(t *testing.T) {
	s, clock := newTestStorage()
	s.Insert(0, health{value: 1})
	afterInsert := clock.Load()
	if !s.AddedSince(0, afterInsert) || !s.ChangedSince(0, afterInsert) {
		t.Fatalf("insert must stamp both added and changed ticks")
	}
	mark := clock.Load() + 1
	if s.ChangedSince(0, mark) {
		t.Fatalf("no change since mark expected")
	}
	if v, ok := s.GetMut(0); !ok {
		t.Fatalf("GetMut failed")
	} else {
		v.value = 2
	}
	if !s.ChangedSince(0, mark) {
		t.Fatalf("GetMut must stamp the changed tick")
	}
	if s.AddedSince(0, mark) {
		t.Fatalf("GetMut must not stamp the added tick")
	}
}

func TestStorageClear(t *testing.T) {
	s, _ := newTestStorage()
	for i := uint32(0); i < 4; i++ {
		s.Insert(i, health{value: int(i)})
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty storage after clear")
	}
	for i := uint32(0); i < 4; i++ {
		if s.Contains(i) {
			t.Fatalf("index %d still contained after clear", i)
		}
	}
	// The storage stays usable after clearing.
	s.Insert(2, health{value: 9})
	if v, ok := s.Get(2); !ok || v.value != 9 {
		t.Fatalf("insert after clear failed: %v (ok=%v)", v, ok)
	}
	s.checkInvariants(t)
}
