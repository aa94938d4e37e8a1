package attendance

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashutoshvm-off/library-attendance/internal/localstore"
	"github.com/ashutoshvm-off/library-attendance/internal/remote"
	"github.com/ashutoshvm-off/library-attendance/internal/roster"
	"github.com/ashutoshvm-off/library-attendance/internal/syncer"
)

type fixture struct {
	att  *Service
	ros  *roster.Service
	sync *syncer.Service
	mem  *remote.Memory
	loc  *localstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	mem := remote.NewMemory()
	sync := syncer.New(loc, mem, syncer.NewFileJournal(loc), syncer.Options{})
	ros := roster.NewService(loc, mem, sync)
	att := NewService(loc, mem, sync, ros)
	sync.Probe(context.Background())
	return &fixture{att: att, ros: ros, sync: sync, mem: mem, loc: loc}
}

func TestScanAlternatesOpenClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	want := []string{ActionCheckedIn, ActionCheckedOut, ActionCheckedIn, ActionCheckedOut}
	for i, action := range want {
		res, err := f.att.Scan(ctx, "s010")
		require.NoError(t, err, "scan %d", i+1)
		assert.Equal(t, action, res.Action, "scan %d", i+1)
	}

	records, err := f.att.List(ctx, "", "S010")
	require.NoError(t, err)
	require.Len(t, records, 2)
	open := 0
	for _, rec := range records {
		if rec.Status == StatusCheckedIn {
			open++
		}
	}
	assert.Equal(t, 0, open, "every cycle must be closed")
}

func TestFirstScanOpensAndAutoRegisters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.att.Scan(ctx, "S001")
	require.NoError(t, err)
	assert.Equal(t, ActionCheckedIn, res.Action)
	assert.Equal(t, StatusCheckedIn, res.Record.Status)
	assert.Equal(t, "Student S001", res.Record.Name)
	assert.NotNil(t, res.Record.CheckIn)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), res.Record.Date)

	// Both the roster entry and the record reached the remote store.
	assert.Equal(t, 1, f.mem.Count(remote.Roster))
	assert.Equal(t, 1, f.mem.Count(remote.Records))

	entries := f.ros.List(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "S001", entries[0].SubjectID)
}

func TestScanKnownSubjectKeepsRosterName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ros.Create(ctx, roster.Entry{SubjectID: "S020", Name: "Priya N"})
	require.NoError(t, err)

	res, err := f.att.Scan(ctx, "S020")
	require.NoError(t, err)
	assert.Equal(t, "Priya N", res.Record.Name)
	assert.Equal(t, 1, f.mem.Count(remote.Roster), "scan must not re-register")
}

func TestOfflineCheckoutQueuesThenDrains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.att.Scan(ctx, "S002")
	require.NoError(t, err)
	require.Equal(t, ActionCheckedIn, res.Action)

	// Connection drops; the second scan must still check the subject out.
	f.mem.SetAvailable(false)
	f.sync.Probe(ctx)

	res, err = f.att.Scan(ctx, "S002")
	require.NoError(t, err)
	assert.Equal(t, ActionCheckedOut, res.Action)
	assert.NotNil(t, res.Record.CheckOut)
	assert.Equal(t, 1, f.sync.Status().Pending)

	// Local view is already consistent.
	records, err := f.att.List(ctx, "", "S002")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusCheckedOut, records[0].Status)

	// Reconnect: queue drains and last-sync advances.
	f.mem.SetAvailable(true)
	f.sync.Probe(ctx)
	st := f.sync.Status()
	assert.Equal(t, 0, st.Pending)
	assert.False(t, st.LastSync.IsZero())

	docs, err := f.mem.List(ctx, remote.Records, remote.Query{Field: "subject_id", Equals: "S002"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, StatusCheckedOut, docs[0]["status"])
}

func TestScanWhollyOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.SetAvailable(false)
	f.sync.Probe(ctx)

	res, err := f.att.Scan(ctx, "S030")
	require.NoError(t, err)
	assert.Equal(t, ActionCheckedIn, res.Action)

	res, err = f.att.Scan(ctx, "S030")
	require.NoError(t, err)
	assert.Equal(t, ActionCheckedOut, res.Action, "resolver must see the offline check-in")
}

func TestScanRejectsEmptySubject(t *testing.T) {
	f := newFixture(t)
	_, err := f.att.Scan(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptySubject)
}

func TestScanNormalizesCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.att.Scan(ctx, "s040")
	require.NoError(t, err)
	res, err := f.att.Scan(ctx, "S040")
	require.NoError(t, err)
	assert.Equal(t, ActionCheckedOut, res.Action)
}

func TestListFiltersByDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day1 := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	f.att.now = func() time.Time { return day1 }
	_, err := f.att.Scan(ctx, "S050")
	require.NoError(t, err)

	day2 := day1.AddDate(0, 0, 1)
	f.att.now = func() time.Time { return day2 }
	res, err := f.att.Scan(ctx, "S050")
	require.NoError(t, err)
	assert.Equal(t, ActionCheckedIn, res.Action, "yesterday's open record does not carry over")

	records, err := f.att.List(ctx, "2025-05-02", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2025-05-02", records[0].Date)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.att.Scan(ctx, "S060")
	require.NoError(t, err)
	records, err := f.att.List(ctx, "", "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.att.ExportCSV(&buf, records))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "admission_id,name,date,check_in,check_out,status", lines[0])
	assert.Contains(t, lines[1], "S060")
	assert.Contains(t, lines[1], StatusCheckedIn)
}
