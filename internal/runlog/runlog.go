// Package runlog keeps an append-only CSV history of sync runs.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ledgerline/ledgerline/internal/syncer"
)

// Entry is one row in the sync log.
type Entry struct {
	Timestamp   time.Time
	Account     string
	Integration string
	Window      string
	Discovered  int
	New         int
	Updated     int
	Skipped     int
	Balances    int
	DryRun      bool
	DurationMS  int64
	Error       string
}

// Header is the CSV header for sync-log.csv.
const Header = "timestamp,account,integration,window,discovered,new,updated,skipped,balances,dry_run,duration_ms,error"

const (
	numFields      = 12
	logDir         = "logs"
	logFile        = "logs/sync-log.csv"
	colTimestamp   = 0
	colAccount     = 1
	colIntegration = 2
	colWindow      = 3
	colDiscovered  = 4
	colNew         = 5
	colUpdated     = 6
	colSkipped     = 7
	colBalances    = 8
	colDryRun      = 9
	colDuration    = 10
	colError       = 11
)

// FromResult converts a sync result to a log entry.
func FromResult(r *syncer.SyncResult) Entry {
	e := Entry{
		Timestamp:   r.StartedAt.UTC(),
		Account:     r.AccountID.String(),
		Integration: r.Integration,
		Discovered:  r.Discovered,
		New:         r.New,
		Updated:     r.Updated,
		Skipped:     r.Skipped,
		Balances:    r.Balances,
		DryRun:      r.DryRun,
		DurationMS:  r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
	if !r.Window.Start.IsZero() {
		e.Window = r.Window.String()
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colAccount] = e.Account
	row[colIntegration] = e.Integration
	row[colWindow] = e.Window
	row[colDiscovered] = strconv.Itoa(e.Discovered)
	row[colNew] = strconv.Itoa(e.New)
	row[colUpdated] = strconv.Itoa(e.Updated)
	row[colSkipped] = strconv.Itoa(e.Skipped)
	row[colBalances] = strconv.Itoa(e.Balances)
	row[colDryRun] = strconv.FormatBool(e.DryRun)
	row[colDuration] = strconv.FormatInt(e.DurationMS, 10)
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	e := Entry{
		Timestamp:   ts,
		Account:     record[colAccount],
		Integration: record[colIntegration],
		Window:      record[colWindow],
		Error:       record[colError],
	}

	counts := []struct {
		col int
		dst *int
	}{
		{colDiscovered, &e.Discovered},
		{colNew, &e.New},
		{colUpdated, &e.Updated},
		{colSkipped, &e.Skipped},
		{colBalances, &e.Balances},
	}
	for _, c := range counts {
		n, err := strconv.Atoi(record[c.col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing column %d %q: %w", c.col+1, record[c.col], err)
		}
		*c.dst = n
	}
	if e.DryRun, err = strconv.ParseBool(record[colDryRun]); err != nil {
		return Entry{}, fmt.Errorf("parsing dry_run %q: %w", record[colDryRun], err)
	}
	if e.DurationMS, err = strconv.ParseInt(record[colDuration], 10, 64); err != nil {
		return Entry{}, fmt.Errorf("parsing duration_ms %q: %w", record[colDuration], err)
	}
	return e, nil
}

// Log appends to <root>/logs/sync-log.csv. It satisfies syncer.Recorder
// and is safe for concurrent use.
type Log struct {
	root string
	mu   sync.Mutex
}

// New returns a Log rooted at root.
func New(root string) *Log {
	return &Log{root: root}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return filepath.Join(l.root, logFile)
}

// Record appends one sync result.
func (l *Log) Record(r *syncer.SyncResult) error {
	return l.Append([]Entry{FromResult(r)})
}

// Append writes entries, creating the file and header if needed.
func (l *Log) Append(entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dir := filepath.Join(l.root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := l.Path()
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening sync log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries. A missing file yields no entries.
func (l *Log) Read() ([]Entry, error) {
	f, err := os.Open(l.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening sync log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading sync log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
