// Package state persists download records in a SQLite database. The store is
// the single source of truth across restarts; the in-memory progress board
// only mirrors it for cheap polling.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/barge-dl/barge/internal/engine/types"
)

var (
	// ErrNotFound is returned when no record matches the given identity.
	ErrNotFound = errors.New("record not found")
	// ErrAmbiguousPrefix is returned when an ID prefix matches more than one
	// record.
	ErrAmbiguousPrefix = errors.New("ambiguous record prefix")
)

const schema = `
CREATE TABLE IF NOT EXISTS download_records (
	id                    TEXT PRIMARY KEY,
	source_id             TEXT NOT NULL,
	group_id              TEXT NOT NULL DEFAULT '',
	locator               TEXT NOT NULL,
	file_extension        TEXT NOT NULL DEFAULT '',
	size_hint             TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL,
	downloaded_bytes      INTEGER NOT NULL DEFAULT 0,
	total_bytes           INTEGER NOT NULL DEFAULT 0,
	destination_file_name TEXT NOT NULL DEFAULT '',
	error_message         TEXT NOT NULL DEFAULT '',
	queued_at             INTEGER NOT NULL,
	completed_at          INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_records_source ON download_records(source_id);
CREATE INDEX IF NOT EXISTS idx_records_state  ON download_records(state);
`

// nonTerminalStates is the WHERE fragment shared by every conditional write.
// Terminal records are immutable except by deletion; the store enforces that
// here rather than trusting callers.
const nonTerminalStates = `state IN ('pending', 'downloading')`

const recordColumns = `id, source_id, group_id, locator, file_extension, size_hint,
	state, downloaded_bytes, total_bytes, destination_file_name, error_message,
	queued_at, completed_at`

// Store is the persistence collaborator for download records.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the record database at path. Use
// ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping record store: %w", err)
	}

	// One writer at a time keeps the conditional-transition semantics simple
	// under the modernc driver.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new record.
func (s *Store) Create(rec *types.DownloadRecord) error {
	query := `
		INSERT INTO download_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		rec.ID,
		rec.SourceID,
		rec.GroupID,
		rec.Locator,
		rec.FileExtension,
		rec.SizeHint,
		string(rec.State),
		rec.DownloadedBytes,
		rec.TotalBytes,
		rec.DestinationFileName,
		rec.ErrorMessage,
		rec.QueuedAt,
		rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *Store) Get(id string) (*types.DownloadRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM download_records WHERE id = ?`
	return s.scanOne(s.db.QueryRow(query, id))
}

// ActiveBySource returns the non-terminal record for a source, if any. At
// most one is expected; the engine refuses to queue a second while one is in
// flight.
func (s *Store) ActiveBySource(sourceID string) (*types.DownloadRecord, error) {
	query := `
		SELECT ` + recordColumns + ` FROM download_records
		WHERE source_id = ? AND ` + nonTerminalStates + `
		ORDER BY queued_at LIMIT 1
	`
	return s.scanOne(s.db.QueryRow(query, sourceID))
}

// NonTerminal returns every record still pending or downloading, in queue
// order. Used by startup recovery.
func (s *Store) NonTerminal() ([]types.DownloadRecord, error) {
	query := `
		SELECT ` + recordColumns + ` FROM download_records
		WHERE ` + nonTerminalStates + `
		ORDER BY queued_at, id
	`
	return s.scanAll(query)
}

// ByGroup returns every record in a group, in queue order.
func (s *Store) ByGroup(groupID string) ([]types.DownloadRecord, error) {
	query := `
		SELECT ` + recordColumns + ` FROM download_records
		WHERE group_id = ?
		ORDER BY queued_at, id
	`
	return s.scanAll(query, groupID)
}

// All returns every record, in queue order.
func (s *Store) All() ([]types.DownloadRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM download_records ORDER BY queued_at, id`
	return s.scanAll(query)
}

// MarkDownloading moves a record from pending to downloading and stores the
// declared total and destination name. Reports whether the transition
// applied; it does not when the record was already terminal or gone.
func (s *Store) MarkDownloading(id string, totalBytes int64, fileName string) (bool, error) {
	query := `
		UPDATE download_records
		SET state = ?, total_bytes = ?, destination_file_name = ?
		WHERE id = ? AND ` + nonTerminalStates + `
	`
	return s.conditional(query, string(types.StateDownloading), totalBytes, fileName, id)
}

// UpdateProgress writes the current byte counters. Skipped silently once the
// record is terminal.
func (s *Store) UpdateProgress(id string, downloaded, total int64) (bool, error) {
	query := `
		UPDATE download_records
		SET downloaded_bytes = ?, total_bytes = ?
		WHERE id = ? AND ` + nonTerminalStates + `
	`
	return s.conditional(query, downloaded, total, id)
}

// Finalize moves a record into a terminal state with its final counters.
// The first terminal writer wins; a second Finalize reports false and leaves
// the record untouched.
func (s *Store) Finalize(id string, st types.RecordState, downloaded, total int64, fileName, errMsg string, completedAt int64) (bool, error) {
	if !st.Terminal() {
		return false, fmt.Errorf("finalize with non-terminal state %q", st)
	}
	query := `
		UPDATE download_records
		SET state = ?, downloaded_bytes = ?, total_bytes = ?,
		    destination_file_name = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND ` + nonTerminalStates + `
	`
	return s.conditional(query, string(st), downloaded, total, fileName, errMsg, completedAt, id)
}

// MarkCancelled finalizes a record as cancelled keeping its current byte
// counters. No error message is recorded for cancellations.
func (s *Store) MarkCancelled(id string, completedAt int64) (bool, error) {
	query := `
		UPDATE download_records
		SET state = ?, completed_at = ?
		WHERE id = ? AND ` + nonTerminalStates + `
	`
	return s.conditional(query, string(types.StateCancelled), completedAt, id)
}

// Delete removes a record regardless of state.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM download_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearTerminal deletes every completed, failed, or cancelled record and
// returns how many were removed.
func (s *Store) ClearTerminal() (int, error) {
	res, err := s.db.Exec(`DELETE FROM download_records WHERE NOT (` + nonTerminalStates + `)`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear terminal records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ResolvePrefix expands a unique record-ID prefix to the full ID, so CLI
// users can name records by their first few characters.
func (s *Store) ResolvePrefix(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrNotFound
	}

	rows, err := s.db.Query(
		`SELECT id FROM download_records WHERE id LIKE ? LIMIT 2`,
		prefix+"%",
	)
	if err != nil {
		return "", fmt.Errorf("failed to resolve prefix: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", ErrNotFound
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %q", ErrAmbiguousPrefix, prefix)
	}
}

func (s *Store) conditional(query string, args ...any) (bool, error) {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) scanOne(row *sql.Row) (*types.DownloadRecord, error) {
	var rec types.DownloadRecord
	var st string
	err := row.Scan(
		&rec.ID,
		&rec.SourceID,
		&rec.GroupID,
		&rec.Locator,
		&rec.FileExtension,
		&rec.SizeHint,
		&st,
		&rec.DownloadedBytes,
		&rec.TotalBytes,
		&rec.DestinationFileName,
		&rec.ErrorMessage,
		&rec.QueuedAt,
		&rec.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	rec.State = types.RecordState(st)
	return &rec, nil
}

func (s *Store) scanAll(query string, args ...any) ([]types.DownloadRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []types.DownloadRecord
	for rows.Next() {
		var rec types.DownloadRecord
		var st string
		if err := rows.Scan(
			&rec.ID,
			&rec.SourceID,
			&rec.GroupID,
			&rec.Locator,
			&rec.FileExtension,
			&rec.SizeHint,
			&st,
			&rec.DownloadedBytes,
			&rec.TotalBytes,
			&rec.DestinationFileName,
			&rec.ErrorMessage,
			&rec.QueuedAt,
			&rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.State = types.RecordState(st)
		out = append(out, rec)
	}
	return out, rows.Err()
}
