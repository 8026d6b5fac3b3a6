package progress

import (
	"sync"
	"testing"

	"github.com/barge-dl/barge/internal/engine/types"
)

func TestBoardPutGetRemove(t *testing.T) {
	b := NewBoard()

	b.Put(Snapshot{RecordID: "a", State: types.StatePending})
	b.Put(Snapshot{RecordID: "b", State: types.StateDownloading})

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}

	s, ok := b.Get("a")
	if !ok || s.State != types.StatePending {
		t.Errorf("Get(a) = %+v, %v", s, ok)
	}

	b.Remove("a")
	if _, ok := b.Get("a"); ok {
		t.Error("entry still present after Remove")
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestBoardProgressFraction(t *testing.T) {
	b := NewBoard()
	b.Put(Snapshot{RecordID: "r"})

	// Total unknown: fraction stays 0 regardless of bytes.
	b.Progress("r", 4096, 0)
	s, _ := b.Get("r")
	if s.Fraction != 0 {
		t.Errorf("Fraction = %v, want 0 while total unknown", s.Fraction)
	}
	if s.DownloadedBytes != 4096 {
		t.Errorf("DownloadedBytes = %d, want 4096", s.DownloadedBytes)
	}

	b.Progress("r", 50, 100)
	s, _ = b.Get("r")
	if s.Fraction != 0.5 {
		t.Errorf("Fraction = %v, want 0.5", s.Fraction)
	}

	// Overshoot clamps to 1.
	b.Progress("r", 150, 100)
	s, _ = b.Get("r")
	if s.Fraction != 1 {
		t.Errorf("Fraction = %v, want 1", s.Fraction)
	}
}

func TestBoardIgnoresUnknownIDs(t *testing.T) {
	b := NewBoard()
	b.Progress("ghost", 10, 100)
	b.SetState("ghost", types.StateFailed)
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBoardListOrdered(t *testing.T) {
	b := NewBoard()
	for _, id := range []string{"c", "a", "b"} {
		b.Put(Snapshot{RecordID: id})
	}

	list := b.List()
	if len(list) != 3 {
		t.Fatalf("List() len = %d, want 3", len(list))
	}
	for i, want := range []string{"a", "b", "c"} {
		if list[i].RecordID != want {
			t.Errorf("List()[%d] = %q, want %q", i, list[i].RecordID, want)
		}
	}
}

func TestBoardConcurrentReaders(t *testing.T) {
	b := NewBoard()
	b.Put(Snapshot{RecordID: "r", TotalBytes: 1 << 20})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Get("r")
				b.List()
			}
		}()
	}

	for i := int64(0); i < 100; i++ {
		b.Progress("r", i*1024, 1<<20)
	}
	wg.Wait()
}
