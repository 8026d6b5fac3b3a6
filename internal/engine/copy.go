package engine

import (
	"context"
	"io"

	"github.com/barge-dl/barge/internal/scheduler"
)

// copyChunked copies src to dst through a fixed-size buffer. After every
// flushed buffer it checks the context and the task context once; a set flag
// aborts the copy with context.Canceled and the byte count flushed so far.
// onFlush, if non-nil, runs after each successful flush with the running
// total.
func copyChunked(ctx context.Context, tc *scheduler.TaskContext, dst io.Writer, src io.Reader, bufSize int, onFlush func(written int64)) (int64, error) {
	buf := make([]byte, bufSize)
	var written int64

	for {
		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if nw < nr {
				return written, io.ErrShortWrite
			}

			// One cancellation checkpoint per flushed buffer, not per byte.
			if ctx.Err() != nil || (tc != nil && tc.IsCancelled()) {
				return written, context.Canceled
			}

			if onFlush != nil {
				onFlush(written)
			}
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
