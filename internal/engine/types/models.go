package types

// RecordState is the lifecycle state of a DownloadRecord.
type RecordState string

const (
	StatePending     RecordState = "pending"
	StateDownloading RecordState = "downloading"
	StateCompleted   RecordState = "completed"
	StateFailed      RecordState = "failed"
	StateCancelled   RecordState = "cancelled"
)

// Terminal reports whether the state is final. Terminal records are never
// mutated again except by deletion.
func (s RecordState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

func (s RecordState) String() string {
	return string(s)
}

// DownloadRecord is the persisted unit of download work. One record is
// created per queue call and mutated only by the engine executing it.
type DownloadRecord struct {
	ID                  string      `json:"id"`
	SourceID            string      `json:"source_id"`
	GroupID             string      `json:"group_id,omitempty"`
	Locator             string      `json:"locator"`
	FileExtension       string      `json:"file_extension,omitempty"`
	SizeHint            string      `json:"size_hint,omitempty"`
	State               RecordState `json:"state"`
	DownloadedBytes     int64       `json:"downloaded_bytes"`
	TotalBytes          int64       `json:"total_bytes"`
	DestinationFileName string      `json:"destination_file_name,omitempty"`
	ErrorMessage        string      `json:"error_message,omitempty"`
	QueuedAt            int64       `json:"queued_at"`    // Unix timestamp
	CompletedAt         int64       `json:"completed_at"` // Unix timestamp, 0 until completed
}

// Fraction returns downloaded/total clamped to [0,1], or 0 while the total
// is still unknown.
func (r *DownloadRecord) Fraction() float64 {
	if r.TotalBytes <= 0 {
		return 0
	}
	f := float64(r.DownloadedBytes) / float64(r.TotalBytes)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
