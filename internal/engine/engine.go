// Package engine implements the resumable download engine: it persists one
// record per transfer, streams bytes to disk through the task scheduler,
// throttles progress emissions, and recovers non-terminal records after a
// restart. All record and board mutation happens here; observers only read.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/barge-dl/barge/internal/engine/events"
	"github.com/barge-dl/barge/internal/engine/progress"
	"github.com/barge-dl/barge/internal/engine/state"
	"github.com/barge-dl/barge/internal/engine/types"
	"github.com/barge-dl/barge/internal/scheduler"
	"github.com/barge-dl/barge/internal/transform"
	"github.com/barge-dl/barge/internal/transport"
	"github.com/barge-dl/barge/internal/utils"
)

// ErrNoLocator is returned by Queue when the request names no stream source.
var ErrNoLocator = errors.New("no locator given")

// CompletionNotifier is the domain completion collaborator, invoked exactly
// once after a record reaches completed.
type CompletionNotifier interface {
	DownloadCompleted(rec types.DownloadRecord)
}

// Options are the dependency-injected collaborators for an Engine. Store and
// Transport are required; everything else has a working zero value.
type Options struct {
	Store     *state.Store
	Transport transport.Transport

	// Facility is the OS background-execution collaborator. Nil means no
	// facility exists and every transfer runs through the serialized
	// foreground fallback.
	Facility scheduler.Facility

	// Notifier receives completed records. Optional.
	Notifier CompletionNotifier

	// Transformer powers the transcription pipeline. Optional; without one,
	// QueueTranscription fails fast.
	Transformer transform.Transformer

	Runtime *types.RuntimeConfig
	Logger  *log.Logger
	Clock   Clock
}

// Engine owns download records, their observable board entries, and the
// scheduler entries that execute them.
type Engine struct {
	store       *state.Store
	transport   transport.Transport
	sched       *scheduler.Scheduler
	board       *progress.Board
	notifier    CompletionNotifier
	transformer transform.Transformer
	runtime     *types.RuntimeConfig
	logger      *log.Logger
	clock       Clock
	events      chan any
}

// QueueRequest describes one download to queue.
type QueueRequest struct {
	// SourceID identifies the domain item the download belongs to. Empty
	// defaults to the locator.
	SourceID string
	// GroupID optionally groups records for CancelAll. Empty means ungrouped.
	GroupID string
	// Locator is the URL-like stream source. Required.
	Locator string
	// FileExtension is appended to the destination name when the name has no
	// extension of its own. Optional.
	FileExtension string
	// SizeHint is an advisory quality/size label carried on the record.
	SizeHint string
}

// New builds an Engine from its collaborators.
func New(opts Options) *Engine {
	e := &Engine{
		store:       opts.Store,
		transport:   opts.Transport,
		board:       progress.NewBoard(),
		notifier:    opts.Notifier,
		transformer: opts.Transformer,
		runtime:     opts.Runtime,
		logger:      opts.Logger,
		clock:       opts.Clock,
		events:      make(chan any, types.EventChannelBuffer),
	}
	if e.logger == nil {
		e.logger = utils.NopLogger()
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	e.sched = scheduler.New(opts.Facility,
		scheduler.WithFallbackRunner(newSerialRunner()),
		scheduler.WithLogger(e.logger.WithPrefix("scheduler")),
	)
	return e
}

// Events returns the engine's event stream. Publishes never block: when the
// consumer lags, messages are dropped and the board and store remain
// authoritative.
func (e *Engine) Events() <-chan any {
	return e.events
}

// Board exposes the observable progress map for polling observers.
func (e *Engine) Board() *progress.Board {
	return e.board
}

// Queue creates and persists a download record and hands its work to the
// scheduler. The returned record ID is available immediately; the transfer
// itself may start now (foreground fallback) or when the facility launches
// it. Queueing a source that already has a non-terminal record returns that
// record's ID instead of starting a second transfer.
func (e *Engine) Queue(req QueueRequest) (string, error) {
	if req.Locator == "" {
		return "", ErrNoLocator
	}
	if req.SourceID == "" {
		req.SourceID = req.Locator
	}

	existing, err := e.store.ActiveBySource(req.SourceID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return "", fmt.Errorf("failed to check in-flight records: %w", err)
	}

	rec := &types.DownloadRecord{
		ID:            uuid.NewString(),
		SourceID:      req.SourceID,
		GroupID:       req.GroupID,
		Locator:       req.Locator,
		FileExtension: strings.TrimPrefix(req.FileExtension, "."),
		SizeHint:      req.SizeHint,
		State:         types.StatePending,
		QueuedAt:      e.clock.Now().Unix(),
	}
	if err := e.store.Create(rec); err != nil {
		return "", err
	}

	e.board.Put(snapshotOf(rec))
	e.publish(events.QueuedMsg{RecordID: rec.ID, SourceID: rec.SourceID, Locator: rec.Locator})

	id := rec.ID
	e.sched.Schedule(id, "Downloading "+rec.Locator, func(ctx context.Context, tc *scheduler.TaskContext) error {
		return e.download(ctx, tc, id)
	})

	e.logger.Debug("queued download", "record", rec.ID, "source", rec.SourceID)
	return rec.ID, nil
}

// Cancel cancels the in-flight download for a source. Unknown or already
// terminal sources are a no-op.
func (e *Engine) Cancel(sourceID string) {
	rec, err := e.store.ActiveBySource(sourceID)
	if err != nil {
		return
	}
	e.CancelRecord(rec.ID)
}

// CancelRecord cancels one record by identity. The scheduler entry is
// cancelled cooperatively; whichever of the canceller and the running work
// finalizes the record first wins, the store refuses the second write.
func (e *Engine) CancelRecord(id string) {
	e.sched.Cancel(id)

	applied, err := e.store.MarkCancelled(id, e.clock.Now().Unix())
	if err != nil {
		e.logger.Warn("failed to mark record cancelled", "record", id, "err", err)
		return
	}
	if applied {
		e.finalEmission(id, types.StateCancelled)
		e.publish(events.CancelledMsg{RecordID: id})
	}
}

// CancelAll cancels every non-terminal record in a group.
func (e *Engine) CancelAll(groupID string) {
	recs, err := e.store.ByGroup(groupID)
	if err != nil {
		e.logger.Warn("failed to list group records", "group", groupID, "err", err)
		return
	}
	for _, rec := range recs {
		if !rec.State.Terminal() {
			e.CancelRecord(rec.ID)
		}
	}
}

// Restore re-queues every non-terminal record after a process restart. Board
// entries are repopulated from the persisted fractions before any transfer
// restarts; transfers begin again from byte zero. Returns how many records
// were restored.
func (e *Engine) Restore() (int, error) {
	recs, err := e.store.NonTerminal()
	if err != nil {
		return 0, fmt.Errorf("failed to load non-terminal records: %w", err)
	}

	for i := range recs {
		rec := recs[i]
		e.board.Put(snapshotOf(&rec))

		id := rec.ID
		e.sched.Schedule(id, "Downloading "+rec.Locator, func(ctx context.Context, tc *scheduler.TaskContext) error {
			return e.download(ctx, tc, id)
		})
	}

	if len(recs) > 0 {
		e.publish(events.RestoredMsg{Count: len(recs)})
	}
	e.logger.Debug("restored records", "count", len(recs))
	return len(recs), nil
}

// Snapshot returns the observable snapshot for a record, reading the board
// first and falling back to the store for terminal records.
func (e *Engine) Snapshot(id string) (progress.Snapshot, bool) {
	if s, ok := e.board.Get(id); ok {
		return s, true
	}
	rec, err := e.store.Get(id)
	if err != nil {
		return progress.Snapshot{}, false
	}
	return snapshotOf(rec), true
}

// List returns a snapshot per known record: live board entries overlaid on
// the persisted records.
func (e *Engine) List() ([]progress.Snapshot, error) {
	recs, err := e.store.All()
	if err != nil {
		return nil, err
	}

	out := make([]progress.Snapshot, 0, len(recs))
	for i := range recs {
		if s, ok := e.board.Get(recs[i].ID); ok {
			out = append(out, s)
			continue
		}
		out = append(out, snapshotOf(&recs[i]))
	}
	return out, nil
}

// IsRunning reports whether a scheduler entry exists for the record.
func (e *Engine) IsRunning(recordID string) bool {
	return e.sched.IsRunning(recordID)
}

// Shutdown waits for all in-flight work to finish or ctx to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.sched.Wait(ctx)
}

// download is the work closure for one record. All failure paths land in a
// terminal record state; the returned error only feeds the scheduler's
// bookkeeping.
func (e *Engine) download(ctx context.Context, tc *scheduler.TaskContext, id string) error {
	rec, err := e.store.Get(id)
	if err != nil {
		e.logger.Warn("record vanished before download", "record", id, "err", err)
		return err
	}
	if rec.State.Terminal() {
		// Cancelled while queued; nothing to do.
		return nil
	}

	stream, err := e.transport.Open(ctx, rec.Locator)
	if err != nil {
		if ctx.Err() != nil || tc.IsCancelled() {
			e.finalizeCancelled(rec, 0)
			return context.Canceled
		}
		e.finalizeFailed(rec, err)
		return err
	}
	defer stream.Body.Close()

	rec.TotalBytes = stream.TotalBytes
	rec.DestinationFileName = e.destinationName(rec, stream.SuggestedName)

	applied, err := e.store.MarkDownloading(id, rec.TotalBytes, rec.DestinationFileName)
	if err != nil {
		e.finalizeFailed(rec, err)
		return err
	}
	if !applied {
		// Finalized out from under us while the stream was opening.
		return nil
	}
	rec.State = types.StateDownloading
	e.board.Put(snapshotOf(rec))
	e.publish(events.StartedMsg{RecordID: rec.ID, FileName: rec.DestinationFileName, Total: rec.TotalBytes})

	destPath, err := e.destinationPath(rec)
	if err != nil {
		e.finalizeFailed(rec, err)
		return err
	}
	partPath := destPath + types.IncompleteSuffix

	out, err := os.Create(partPath)
	if err != nil {
		e.finalizeFailed(rec, err)
		return err
	}

	startedAt := e.clock.Now()
	limiter := rate.NewLimiter(rate.Every(e.runtime.GetProgressInterval()), 1)

	written, copyErr := copyChunked(ctx, tc, out, stream.Body, e.runtime.GetCopyBufferSize(), func(written int64) {
		if limiter.AllowN(e.clock.Now(), 1) {
			e.progressTick(rec, tc, written)
		}
	})

	if copyErr != nil {
		_ = out.Close()
		if errors.Is(copyErr, context.Canceled) {
			// Partial file stays on disk; the byte counter keeps the last
			// flushed amount. Re-queueing later restarts from zero.
			e.finalizeCancelled(rec, written)
			return context.Canceled
		}
		_ = os.Remove(partPath)
		e.finalizeFailed(rec, copyErr)
		return copyErr
	}

	if err := out.Sync(); err != nil {
		out.Close()
		_ = os.Remove(partPath)
		e.finalizeFailed(rec, err)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(partPath)
		e.finalizeFailed(rec, err)
		return err
	}

	// Extensionless payloads get one sniffed from the file contents.
	if filepath.Ext(rec.DestinationFileName) == "" {
		if ext, err := utils.SniffExtension(partPath); err == nil && ext != "" {
			rec.DestinationFileName += "." + ext
			destPath += "." + ext
		}
	}

	if err := finalizeFile(partPath, destPath); err != nil {
		e.finalizeFailed(rec, err)
		return err
	}

	if rec.TotalBytes <= 0 {
		rec.TotalBytes = written
	}
	rec.DownloadedBytes = written
	rec.State = types.StateCompleted
	rec.CompletedAt = e.clock.Now().Unix()

	applied, err = e.store.Finalize(rec.ID, types.StateCompleted, written, rec.TotalBytes,
		rec.DestinationFileName, "", rec.CompletedAt)
	if err != nil {
		e.logger.Warn("failed to finalize record", "record", rec.ID, "err", err)
		return err
	}
	if !applied {
		// Lost the race to a canceller after the file landed. The record says
		// cancelled; leave it alone.
		return nil
	}

	tc.ReportProgress(1)
	// Terminal updates bypass the throttle.
	e.board.Progress(rec.ID, written, rec.TotalBytes)
	e.finalEmission(rec.ID, types.StateCompleted)
	e.publish(events.CompletedMsg{
		RecordID: rec.ID,
		FileName: rec.DestinationFileName,
		Total:    rec.TotalBytes,
		Elapsed:  e.clock.Now().Sub(startedAt),
	})
	if e.notifier != nil {
		e.notifier.DownloadCompleted(*rec)
	}
	e.logger.Info("download completed", "record", rec.ID, "file", rec.DestinationFileName, "bytes", written)
	return nil
}

// progressTick is one throttled progress emission: store, board, task
// context, and event stream all updated together. A progress write refused
// by the store means the record was finalized out from under us, typically
// `barge cancel` in another process; the transfer is told to stop at its
// next checkpoint.
func (e *Engine) progressTick(rec *types.DownloadRecord, tc *scheduler.TaskContext, written int64) {
	rec.DownloadedBytes = written

	applied, err := e.store.UpdateProgress(rec.ID, written, rec.TotalBytes)
	if err != nil {
		e.logger.Debug("progress write failed", "record", rec.ID, "err", err)
	}
	if err == nil && !applied {
		tc.Cancel()
		return
	}
	e.board.Progress(rec.ID, written, rec.TotalBytes)
	tc.ReportProgress(rec.Fraction())
	e.publish(events.ProgressMsg{
		RecordID:   rec.ID,
		Downloaded: written,
		Total:      rec.TotalBytes,
		Fraction:   rec.Fraction(),
	})
}

func (e *Engine) finalizeCancelled(rec *types.DownloadRecord, written int64) {
	applied, err := e.store.Finalize(rec.ID, types.StateCancelled, written, rec.TotalBytes,
		rec.DestinationFileName, "", e.clock.Now().Unix())
	if err != nil {
		e.logger.Warn("failed to mark record cancelled", "record", rec.ID, "err", err)
		return
	}
	if !applied {
		// Someone else finalized first: an engine-level Cancel already
		// emitted, or another process marked the record in the store. Either
		// way the board entry must not outlive the record.
		e.finalEmission(rec.ID, types.StateCancelled)
		return
	}
	e.board.Progress(rec.ID, written, rec.TotalBytes)
	e.finalEmission(rec.ID, types.StateCancelled)
	e.publish(events.CancelledMsg{RecordID: rec.ID})
	e.logger.Debug("download cancelled", "record", rec.ID, "bytes", written)
}

func (e *Engine) finalizeFailed(rec *types.DownloadRecord, cause error) {
	applied, err := e.store.Finalize(rec.ID, types.StateFailed, rec.DownloadedBytes, rec.TotalBytes,
		rec.DestinationFileName, cause.Error(), e.clock.Now().Unix())
	if err != nil {
		e.logger.Warn("failed to mark record failed", "record", rec.ID, "err", err)
		return
	}
	if !applied {
		return
	}
	e.finalEmission(rec.ID, types.StateFailed)
	e.publish(events.FailedMsg{RecordID: rec.ID, FileName: rec.DestinationFileName, Err: cause})
	e.logger.Warn("download failed", "record", rec.ID, "err", cause)
}

// finalEmission writes the terminal state to the board once, then removes
// the entry. Terminal states live on in the store only.
func (e *Engine) finalEmission(id string, st types.RecordState) {
	e.board.SetState(id, st)
	e.board.Remove(id)
}

func (e *Engine) publish(msg any) {
	select {
	case e.events <- msg:
	default:
		// Consumer lagging; drop rather than block the transfer.
	}
}

// destinationName resolves the record's destination filename from the
// persisted value, the transport's suggestion, and the requested extension.
func (e *Engine) destinationName(rec *types.DownloadRecord, suggested string) string {
	name := rec.DestinationFileName
	if name == "" {
		name = utils.SanitizeFilename(suggested)
	}
	if name == "" {
		name = utils.FallbackFilename
	}
	if rec.FileExtension != "" && filepath.Ext(name) == "" {
		name += "." + rec.FileExtension
	}
	return name
}

// destinationPath joins the destination directory (optionally organized by
// host) with the record's filename, creating directories as needed.
func (e *Engine) destinationPath(rec *types.DownloadRecord) (string, error) {
	dir := e.runtime.GetDownloadDir()
	if e.runtime.GetOrganizeByHost() {
		sub, err := utils.HostPath(rec.Locator)
		if err == nil {
			dir = filepath.Join(dir, sub)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	return filepath.Join(dir, rec.DestinationFileName), nil
}

// finalizeFile moves the completed part file into place. Re-downloads are
// destructive overwrites: a pre-existing destination is removed first. When
// rename fails (cross-filesystem), fall back to copy+remove.
func finalizeFile(partPath, destPath string) error {
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing destination: %w", err)
	}

	if err := os.Rename(partPath, destPath); err == nil {
		return nil
	}

	src, err := os.Open(partPath)
	if err != nil {
		return fmt.Errorf("failed to reopen part file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := dst.ReadFrom(src); err != nil {
		dst.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("failed to copy to destination: %w", err)
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(partPath)
}

func snapshotOf(rec *types.DownloadRecord) progress.Snapshot {
	return progress.Snapshot{
		RecordID:        rec.ID,
		SourceID:        rec.SourceID,
		State:           rec.State,
		Fraction:        rec.Fraction(),
		DownloadedBytes: rec.DownloadedBytes,
		TotalBytes:      rec.TotalBytes,
		FileName:        rec.DestinationFileName,
	}
}
