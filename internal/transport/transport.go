// Package transport abstracts the byte-stream source downloads read from.
// The engine only sees this interface; tests substitute scripted fakes.
package transport

import (
	"context"
	"io"
)

// ProbeResult carries the metadata learned about a remote resource before
// any transfer starts.
type ProbeResult struct {
	TotalBytes  int64 // 0 when the server does not declare a length
	Filename    string
	ContentType string
}

// Stream is one open byte stream. TotalBytes is the declared length, or 0
// when unknown. The caller owns Body and must close it.
type Stream struct {
	Body          io.ReadCloser
	TotalBytes    int64
	SuggestedName string
}

// Transport yields byte streams for locators. Both operations honor context
// cancellation mid-request and mid-stream.
type Transport interface {
	// Probe checks that the locator yields a usable stream and reports its
	// metadata without transferring the payload.
	Probe(ctx context.Context, locator string) (*ProbeResult, error)

	// Open starts a full transfer from byte zero.
	Open(ctx context.Context, locator string) (*Stream, error)
}
