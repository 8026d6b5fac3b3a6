package types

import (
	"time"
)

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB

	// IncompleteSuffix is appended to destination files while a transfer is
	// in flight.
	IncompleteSuffix = ".part"
)

// Transfer tuning
const (
	// CopyBuffer is the transfer buffer size. Cancellation and expiration are
	// checked once per flushed buffer, not per byte.
	CopyBuffer = 64 * KB

	// ProgressInterval is the minimum spacing between progress updates for
	// one record. Bounds store write rate and observer churn.
	ProgressInterval = 500 * time.Millisecond

	// EventChannelBuffer bounds the engine event stream. Publishes are
	// dropped, never blocked, when the consumer lags.
	EventChannelBuffer = 100
)

// HTTP client tuning
const (
	ProbeTimeout    = 30 * time.Second
	ProbeAttempts   = 3
	ProbeRetryDelay = 1 * time.Second
	MaxRedirects    = 10
)

// RuntimeConfig holds dynamic settings that override engine defaults.
// A nil receiver yields defaults everywhere.
type RuntimeConfig struct {
	DownloadDir      string
	UserAgent        string
	CopyBufferSize   int
	ProgressInterval time.Duration
	OrganizeByHost   bool
	TransformCommand []string
}

// GetUserAgent returns the configured user agent or the default
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return r.UserAgent
}

// GetDownloadDir returns the configured destination directory or the
// current directory.
func (r *RuntimeConfig) GetDownloadDir() string {
	if r == nil || r.DownloadDir == "" {
		return "."
	}
	return r.DownloadDir
}

// GetCopyBufferSize returns configured value or default
func (r *RuntimeConfig) GetCopyBufferSize() int {
	if r == nil || r.CopyBufferSize <= 0 {
		return CopyBuffer
	}
	return r.CopyBufferSize
}

// GetProgressInterval returns configured value or default
func (r *RuntimeConfig) GetProgressInterval() time.Duration {
	if r == nil || r.ProgressInterval <= 0 {
		return ProgressInterval
	}
	return r.ProgressInterval
}

// GetOrganizeByHost reports whether downloads are grouped into host/path
// subdirectories.
func (r *RuntimeConfig) GetOrganizeByHost() bool {
	return r != nil && r.OrganizeByHost
}

// GetTransformCommand returns the external transform command template, or
// nil when none is configured.
func (r *RuntimeConfig) GetTransformCommand() []string {
	if r == nil {
		return nil
	}
	return r.TransformCommand
}
