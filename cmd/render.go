package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/barge-dl/barge/internal/engine/events"
	"github.com/barge-dl/barge/internal/engine/progress"
	"github.com/barge-dl/barge/internal/engine/types"
	"github.com/barge-dl/barge/internal/utils"
)

var (
	idStyle        = lipgloss.NewStyle().Faint(true)
	fileStyle      = lipgloss.NewStyle().Bold(true)
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// plainOutput reports whether the terminal supports color at all; snapshots
// render unstyled when it does not.
func plainOutput() bool {
	return termenv.ColorProfile() == termenv.Ascii
}

func stateStyle(st types.RecordState) lipgloss.Style {
	switch st {
	case types.StateCompleted:
		return completedStyle
	case types.StateFailed:
		return failedStyle
	case types.StateCancelled:
		return cancelledStyle
	default:
		return activeStyle
	}
}

// shortID trims a record UUID to a prefix long enough to resolve back.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// renderSnapshot produces one status line for a record.
func renderSnapshot(s progress.Snapshot, plain bool) string {
	name := s.FileName
	if name == "" {
		name = "(unresolved)"
	}

	size := utils.HumanBytes(s.DownloadedBytes)
	if s.TotalBytes > 0 {
		size = fmt.Sprintf("%s / %s", utils.HumanBytes(s.DownloadedBytes), utils.HumanBytes(s.TotalBytes))
	}

	pct := fmt.Sprintf("%3.0f%%", s.Fraction*100)
	if s.State == types.StateCompleted {
		pct = "100%"
	}

	if plain {
		return fmt.Sprintf("%s  %-11s %s  %s  %s", shortID(s.RecordID), s.State, pct, size, name)
	}

	return strings.Join([]string{
		idStyle.Render(shortID(s.RecordID)),
		stateStyle(s.State).Render(fmt.Sprintf("%-11s", s.State)),
		pct,
		size,
		fileStyle.Render(name),
	}, "  ")
}

// snapshotOfRecord projects a persisted record into the board's snapshot
// shape so both sources render through the same path.
func snapshotOfRecord(rec types.DownloadRecord) progress.Snapshot {
	f := 0.0
	if rec.TotalBytes > 0 {
		f = float64(rec.DownloadedBytes) / float64(rec.TotalBytes)
		if f > 1 {
			f = 1
		}
	}
	if rec.State == types.StateCompleted {
		f = 1
	}
	return progress.Snapshot{
		RecordID:        rec.ID,
		SourceID:        rec.SourceID,
		State:           rec.State,
		Fraction:        f,
		DownloadedBytes: rec.DownloadedBytes,
		TotalBytes:      rec.TotalBytes,
		FileName:        rec.DestinationFileName,
	}
}

// printEvent turns an engine event into a log line.
func printEvent(logger *log.Logger, msg any) {
	switch m := msg.(type) {
	case events.QueuedMsg:
		logger.Info("queued", "record", shortID(m.RecordID), "locator", m.Locator)
	case events.StartedMsg:
		logger.Info("downloading", "record", shortID(m.RecordID), "file", m.FileName, "total", utils.HumanBytes(m.Total))
	case events.ProgressMsg:
		logger.Debug("progress", "record", shortID(m.RecordID), "fraction", fmt.Sprintf("%.2f", m.Fraction))
	case events.CompletedMsg:
		logger.Info("completed", "record", shortID(m.RecordID), "file", m.FileName, "elapsed", m.Elapsed)
	case events.FailedMsg:
		logger.Error("failed", "record", shortID(m.RecordID), "err", m.Err)
	case events.CancelledMsg:
		logger.Info("cancelled", "record", shortID(m.RecordID))
	case events.RestoredMsg:
		logger.Info("restored records", "count", m.Count)
	case events.PipelineCompletedMsg:
		logger.Info("pipeline completed", "task", shortID(m.TaskID), "artifact", m.Artifact)
	}
}
