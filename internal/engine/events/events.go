package events

import (
	"encoding/json"
	"errors"
	"time"
)

// QueuedMsg is published when a download record has been created and handed
// to the scheduler.
type QueuedMsg struct {
	RecordID string
	SourceID string
	Locator  string
}

// StartedMsg is published when the transfer actually begins (after the
// stream is open and the total size, if any, is known).
type StartedMsg struct {
	RecordID string
	FileName string
	Total    int64
}

// ProgressMsg carries a throttled progress update for one record.
type ProgressMsg struct {
	RecordID   string
	Downloaded int64
	Total      int64
	Fraction   float64
}

// CompletedMsg signals that the download finished and the destination file
// is in place.
type CompletedMsg struct {
	RecordID string
	FileName string
	Total    int64
	Elapsed  time.Duration
}

// FailedMsg signals a transport or IO failure. The record keeps the message;
// no retry is scheduled.
type FailedMsg struct {
	RecordID string
	FileName string
	Err      error
}

func (m FailedMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		RecordID string `json:"RecordID"`
		FileName string `json:"FileName,omitempty"`
		Err      string `json:"Err,omitempty"`
	}

	out := encoded{
		RecordID: m.RecordID,
		FileName: m.FileName,
	}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}

	return json.Marshal(out)
}

func (m *FailedMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		RecordID string          `json:"RecordID"`
		FileName string          `json:"FileName"`
		Err      json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.RecordID = aux.RecordID
	m.FileName = aux.FileName
	m.Err = nil

	if len(aux.Err) == 0 {
		return nil
	}

	// Most common case: the error was encoded as a string.
	var errStr string
	if err := json.Unmarshal(aux.Err, &errStr); err == nil {
		if errStr != "" {
			m.Err = errors.New(errStr)
		}
		return nil
	}

	// Tolerate non-string payloads (e.g. {}).
	raw := string(aux.Err)
	if raw != "" && raw != "null" {
		m.Err = errors.New(raw)
	}
	return nil
}

// CancelledMsg signals user- or expiration-driven cancellation. Partial data
// stays on disk.
type CancelledMsg struct {
	RecordID string
}

// RestoredMsg is published once after startup recovery has re-queued
// non-terminal records.
type RestoredMsg struct {
	Count int
}

// PipelineCompletedMsg signals that a multi-phase pipeline produced its final
// artifact.
type PipelineCompletedMsg struct {
	TaskID   string
	Artifact string
}
