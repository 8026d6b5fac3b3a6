package progress

import (
	"sort"
	"sync"

	"github.com/barge-dl/barge/internal/engine/types"
)

// Snapshot mirrors one record's state for cheap polling by observers, so the
// presentation side never touches the record store on a render tick.
type Snapshot struct {
	RecordID        string            `json:"record_id"`
	SourceID        string            `json:"source_id"`
	State           types.RecordState `json:"state"`
	Fraction        float64           `json:"fraction"`
	DownloadedBytes int64             `json:"downloaded_bytes"`
	TotalBytes      int64             `json:"total_bytes"`
	FileName        string            `json:"file_name,omitempty"`
}

// Board is the in-memory observable map of in-flight work, keyed by record
// identity. The engine is the only writer; observers read concurrently.
type Board struct {
	mu      sync.RWMutex
	entries map[string]Snapshot
}

func NewBoard() *Board {
	return &Board{entries: make(map[string]Snapshot)}
}

// Put inserts or replaces the snapshot for a record.
func (b *Board) Put(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[s.RecordID] = s
}

// SetState updates the state of an existing entry. Unknown IDs are ignored.
func (b *Board) SetState(id string, st types.RecordState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return
	}
	e.State = st
	b.entries[id] = e
}

// Progress updates the byte counters and derived fraction of an existing
// entry. Unknown IDs are ignored.
func (b *Board) Progress(id string, downloaded, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return
	}
	e.DownloadedBytes = downloaded
	e.TotalBytes = total
	e.Fraction = fraction(downloaded, total)
	b.entries[id] = e
}

// Remove drops the entry once its terminal state has had its final emission.
func (b *Board) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
}

// Get returns the snapshot for id.
func (b *Board) Get(id string) (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.entries[id]
	return s, ok
}

// List returns all snapshots ordered by record ID.
func (b *Board) List() []Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Snapshot, 0, len(b.entries))
	for _, s := range b.entries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out
}

// Len returns the number of tracked entries.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func fraction(downloaded, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(downloaded) / float64(total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
