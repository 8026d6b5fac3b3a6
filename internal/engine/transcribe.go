package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/barge-dl/barge/internal/engine/events"
	"github.com/barge-dl/barge/internal/engine/pipeline"
	"github.com/barge-dl/barge/internal/scheduler"
	"github.com/barge-dl/barge/internal/transport"
	"github.com/barge-dl/barge/internal/utils"
)

// ErrNoTransformer is returned by QueueTranscription when the engine was
// built without a transform collaborator.
var ErrNoTransformer = errors.New("no transformer configured")

// TranscribeRequest describes one download-then-transform pipeline.
type TranscribeRequest struct {
	// SourceID names the owning domain item. Empty defaults to the locator.
	SourceID string
	// Locator is the media stream source. Required.
	Locator string
	// OutputName is the artifact filename. Empty derives one from the
	// locator with a .txt extension.
	OutputName string
}

// QueueTranscription schedules a resolve/download/transform pipeline as one
// scheduler entry, with download and transform each weighted as half of the
// composite progress. The temporary media file is removed on every exit
// path. Returns the task ID.
func (e *Engine) QueueTranscription(req TranscribeRequest) (string, error) {
	if req.Locator == "" {
		return "", ErrNoLocator
	}
	if e.transformer == nil {
		return "", ErrNoTransformer
	}
	if req.SourceID == "" {
		req.SourceID = req.Locator
	}

	id := uuid.NewString()
	e.sched.Schedule(id, "Transcribing "+req.Locator, func(ctx context.Context, tc *scheduler.TaskContext) error {
		return e.transcribe(ctx, tc, id, req)
	})

	e.logger.Debug("queued transcription", "task", id, "source", req.SourceID)
	return id, nil
}

func (e *Engine) transcribe(ctx context.Context, tc *scheduler.TaskContext, id string, req TranscribeRequest) error {
	scope := pipeline.NewScope()
	defer func() {
		if err := scope.Release(); err != nil {
			e.logger.Warn("temporary cleanup failed", "task", id, "err", err)
		}
	}()

	var probe *transport.ProbeResult
	var tempPath string
	var artifact string

	err := pipeline.Run(ctx, tc,
		pipeline.Phase{
			// Fails fast when the locator yields no usable stream; no phase
			// after this one starts and no record is left behind.
			Name:   "resolve",
			Weight: 0,
			Run: func(ctx context.Context, report pipeline.Sink) error {
				p, err := e.transport.Probe(ctx, req.Locator)
				if err != nil {
					return err
				}
				probe = p
				return nil
			},
		},
		pipeline.Phase{
			Name:   "download",
			Weight: 0.5,
			Run: func(ctx context.Context, report pipeline.Sink) error {
				f, err := os.CreateTemp("", "barge-media-*")
				if err != nil {
					return fmt.Errorf("failed to create temporary file: %w", err)
				}
				tempPath = f.Name()
				scope.Track(tempPath)

				stream, err := e.transport.Open(ctx, req.Locator)
				if err != nil {
					f.Close()
					return err
				}
				defer stream.Body.Close()

				total := stream.TotalBytes
				if total <= 0 {
					total = probe.TotalBytes
				}

				limiter := rate.NewLimiter(rate.Every(e.runtime.GetProgressInterval()), 1)
				_, err = copyChunked(ctx, tc, f, stream.Body, e.runtime.GetCopyBufferSize(), func(written int64) {
					if total > 0 && limiter.AllowN(e.clock.Now(), 1) {
						report(float64(written) / float64(total))
					}
				})
				if err != nil {
					f.Close()
					return err
				}
				if err := f.Sync(); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			},
		},
		pipeline.Phase{
			Name:   "transform",
			Weight: 0.5,
			Run: func(ctx context.Context, report pipeline.Sink) error {
				out, err := e.artifactPath(req, probe)
				if err != nil {
					return err
				}
				if err := e.transformer.Transform(ctx, tempPath, out); err != nil {
					return err
				}
				artifact = out
				return nil
			},
		},
	)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.logger.Warn("transcription failed", "task", id, "err", err)
		}
		return err
	}

	e.publish(events.PipelineCompletedMsg{TaskID: id, Artifact: artifact})
	e.logger.Info("transcription completed", "task", id, "artifact", artifact)
	return nil
}

// artifactPath resolves where the transform phase writes its output.
func (e *Engine) artifactPath(req TranscribeRequest, probe *transport.ProbeResult) (string, error) {
	name := utils.SanitizeFilename(req.OutputName)
	if name == "" {
		base := utils.SanitizeFilename(probe.Filename)
		if base == "" {
			base = utils.FallbackFilename
		}
		name = strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
	}

	dir := e.runtime.GetDownloadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}
