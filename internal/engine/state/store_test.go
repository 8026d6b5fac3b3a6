package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barge-dl/barge/internal/engine/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func pendingRecord(id, sourceID string) *types.DownloadRecord {
	return &types.DownloadRecord{
		ID:       id,
		SourceID: sourceID,
		Locator:  "https://example.com/" + id,
		State:    types.StatePending,
		QueuedAt: time.Now().Unix(),
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec := pendingRecord("rec-1", "src-1")
	rec.GroupID = "group-a"
	rec.FileExtension = "mp4"
	rec.SizeHint = "720p"
	require.NoError(t, s.Create(rec))

	got, err := s.Get("rec-1")
	require.NoError(t, err)
	assert.Equal(t, rec.SourceID, got.SourceID)
	assert.Equal(t, rec.GroupID, got.GroupID)
	assert.Equal(t, rec.Locator, got.Locator)
	assert.Equal(t, rec.FileExtension, got.FileExtension)
	assert.Equal(t, rec.SizeHint, got.SizeHint)
	assert.Equal(t, types.StatePending, got.State)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveBySource(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Create(pendingRecord("rec-1", "src-1")))

	got, err := s.ActiveBySource("src-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", got.ID)

	// Terminal records no longer count as active.
	applied, err := s.Finalize("rec-1", types.StateFailed, 0, 0, "", "boom", time.Now().Unix())
	require.NoError(t, err)
	require.True(t, applied)

	_, err = s.ActiveBySource("src-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTerminalRecordsAreImmutable(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Create(pendingRecord("rec-1", "src-1")))

	applied, err := s.Finalize("rec-1", types.StateCompleted, 100, 100, "file.bin", "", 42)
	require.NoError(t, err)
	require.True(t, applied)

	// A second terminal writer loses.
	applied, err = s.MarkCancelled("rec-1", 43)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = s.UpdateProgress("rec-1", 999, 100)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = s.MarkDownloading("rec-1", 500, "other.bin")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.Get("rec-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, got.State)
	assert.Equal(t, int64(100), got.DownloadedBytes)
	assert.Equal(t, "file.bin", got.DestinationFileName)
	assert.Equal(t, int64(42), got.CompletedAt)

	// Deletion is still allowed.
	assert.NoError(t, s.Delete("rec-1"))
}

func TestFinalizeRejectsNonTerminalState(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Create(pendingRecord("rec-1", "src-1")))

	_, err := s.Finalize("rec-1", types.StateDownloading, 0, 0, "", "", 0)
	assert.Error(t, err)
}

func TestNonTerminalQueueOrder(t *testing.T) {
	s := openTestStore(t)

	a := pendingRecord("rec-a", "src-a")
	a.QueuedAt = 10
	b := pendingRecord("rec-b", "src-b")
	b.QueuedAt = 20
	c := pendingRecord("rec-c", "src-c")
	c.QueuedAt = 15
	require.NoError(t, s.Create(a))
	require.NoError(t, s.Create(b))
	require.NoError(t, s.Create(c))

	applied, err := s.MarkCancelled("rec-c", 30)
	require.NoError(t, err)
	require.True(t, applied)

	recs, err := s.NonTerminal()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "rec-a", recs[0].ID)
	assert.Equal(t, "rec-b", recs[1].ID)
}

func TestUpdateProgressAndDownloadingTransition(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Create(pendingRecord("rec-1", "src-1")))

	applied, err := s.MarkDownloading("rec-1", 1000, "movie.mp4")
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = s.UpdateProgress("rec-1", 512, 1000)
	require.NoError(t, err)
	require.True(t, applied)

	got, err := s.Get("rec-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateDownloading, got.State)
	assert.Equal(t, int64(512), got.DownloadedBytes)
	assert.Equal(t, int64(1000), got.TotalBytes)
	assert.Equal(t, "movie.mp4", got.DestinationFileName)
	assert.InDelta(t, 0.512, got.Fraction(), 1e-9)
}

func TestClearTerminal(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Create(pendingRecord("rec-1", "src-1")))
	require.NoError(t, s.Create(pendingRecord("rec-2", "src-2")))
	applied, err := s.MarkCancelled("rec-2", 1)
	require.NoError(t, err)
	require.True(t, applied)

	n, err := s.ClearTerminal()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get("rec-2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("rec-1")
	assert.NoError(t, err)
}

func TestResolvePrefix(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Create(pendingRecord("abc123", "src-1")))
	require.NoError(t, s.Create(pendingRecord("abd456", "src-2")))

	id, err := s.ResolvePrefix("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = s.ResolvePrefix("ab")
	assert.ErrorIs(t, err, ErrAmbiguousPrefix)

	_, err = s.ResolvePrefix("zz")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ResolvePrefix("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestByGroup(t *testing.T) {
	s := openTestStore(t)

	a := pendingRecord("rec-a", "src-a")
	a.GroupID = "g1"
	b := pendingRecord("rec-b", "src-b")
	b.GroupID = "g2"
	require.NoError(t, s.Create(a))
	require.NoError(t, s.Create(b))

	recs, err := s.ByGroup("g1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "rec-a", recs[0].ID)
}
