package runlog

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/syncer"
	"github.com/ledgerline/ledgerline/internal/window"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:   testTime,
		Account:     "3f9c2a1b-0d4e-4f00-8a11-22b3c4d5e6f7",
		Integration: "simplefin",
		Window:      "2025-01-08..2025-01-15 (incremental)",
		Discovered:  12,
		New:         3,
		Updated:     1,
		Skipped:     8,
		Balances:    1,
		DurationMS:  412,
	}
}

func TestAppend_NewFile(t *testing.T) {
	l := New(t.TempDir())
	require.NoError(t, l.Append([]Entry{testEntry()}))

	entries, err := l.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testEntry(), entries[0])

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), Header+"\n")
}

func TestAppend_ExistingFile(t *testing.T) {
	l := New(t.TempDir())
	require.NoError(t, l.Append([]Entry{testEntry()}))

	e2 := testEntry()
	e2.Integration = "csv"
	e2.Error = "fetching: SimpleFIN API error: HTTP 500"
	require.NoError(t, l.Append([]Entry{e2}))

	entries, err := l.Read()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "simplefin", entries[0].Integration)
	assert.Equal(t, e2, entries[1])
}

func TestRead_Missing(t *testing.T) {
	entries, err := New(t.TempDir()).Read()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnmarshalEntry_Errors(t *testing.T) {
	good := MarshalEntry(testEntry())
	tests := []struct {
		name string
		col  int
		val  string
	}{
		{"timestamp", colTimestamp, "yesterday"},
		{"count", colNew, "three"},
		{"dry run", colDryRun, "maybe"},
		{"duration", colDuration, "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := append([]string(nil), good...)
			rec[tt.col] = tt.val
			_, err := UnmarshalEntry(rec)
			assert.Error(t, err)
		})
	}
	_, err := UnmarshalEntry(good[:3])
	assert.Error(t, err)
}

func TestRecord(t *testing.T) {
	l := New(t.TempDir())
	acct := uuid.New()
	ok := &syncer.SyncResult{
		AccountID:   acct,
		Integration: "demo",
		Window: window.Window{
			Start: time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			Kind:  window.KindInitial,
		},
		Discovered: 5,
		New:        5,
		Balances:   1,
		DryRun:     true,
		StartedAt:  testTime,
		FinishedAt: testTime.Add(1500 * time.Millisecond),
	}
	failed := &syncer.SyncResult{
		AccountID:   acct,
		Integration: "simplefin",
		Err:         errors.New("fetching: boom"),
		StartedAt:   testTime,
		FinishedAt:  testTime,
	}

	var wg sync.WaitGroup
	for _, r := range []*syncer.SyncResult{ok, failed} {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Record(r))
		}()
	}
	wg.Wait()

	entries, err := l.Read()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byIntegration := map[string]Entry{}
	for _, e := range entries {
		byIntegration[e.Integration] = e
	}
	d := byIntegration["demo"]
	assert.Equal(t, acct.String(), d.Account)
	assert.Equal(t, ok.Window.String(), d.Window)
	assert.Equal(t, int64(1500), d.DurationMS)
	assert.True(t, d.DryRun)
	assert.Empty(t, d.Error)

	f := byIntegration["simplefin"]
	assert.Empty(t, f.Window)
	assert.Equal(t, "fetching: boom", f.Error)
}
