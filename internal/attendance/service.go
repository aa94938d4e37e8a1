// Package attendance maps scan events onto check-in/check-out records.
package attendance

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/ashutoshvm-off/library-attendance/internal/localstore"
	"github.com/ashutoshvm-off/library-attendance/internal/remote"
	"github.com/ashutoshvm-off/library-attendance/internal/roster"
	"github.com/ashutoshvm-off/library-attendance/internal/syncer"
)

// Record statuses.
const (
	StatusCheckedIn  = "checked-in"
	StatusCheckedOut = "checked-out"
)

// Scan actions.
const (
	ActionCheckedIn  = "checked-in"
	ActionCheckedOut = "checked-out"
)

// ErrEmptySubject rejects a scan with no admission id.
var ErrEmptySubject = errors.New("admission id required")

// Record is one check-in/check-out cycle for a subject on a calendar day.
type Record struct {
	ID        string     `json:"id"`
	SubjectID string     `json:"subject_id"`
	Name      string     `json:"name"`
	Date      string     `json:"date"` // YYYY-MM-DD
	CheckIn   *time.Time `json:"check_in,omitempty"`
	CheckOut  *time.Time `json:"check_out,omitempty"`
	Status    string     `json:"status"`
}

// ScanResult reports what a scan did.
type ScanResult struct {
	Action string `json:"action"`
	Record Record `json:"record"`
}

// Service resolves scans and serves record queries. Construct with
// NewService; the sync service handles all mutations.
type Service struct {
	local  *localstore.Store
	remote remote.Store
	writes *syncer.Service
	roster *roster.Service
	now    func() time.Time
}

// NewService wires the attendance service.
func NewService(local *localstore.Store, rs remote.Store, writes *syncer.Service, ros *roster.Service) *Service {
	return &Service{local: local, remote: rs, writes: writes, roster: ros, now: time.Now}
}

// Scan toggles the subject's attendance state for today: it closes the most
// recent open record, or opens a new one (auto-registering an unseen
// subject). Callers must not submit overlapping scans for the same subject;
// the resolver does not lock per subject.
func (s *Service) Scan(ctx context.Context, subjectID string) (ScanResult, error) {
	subjectID = strings.ToUpper(strings.TrimSpace(subjectID))
	if subjectID == "" {
		return ScanResult{}, ErrEmptySubject
	}
	now := s.now().UTC()
	today := now.Format("2006-01-02")

	records, err := s.recordsFor(ctx, subjectID, today)
	if err != nil {
		return ScanResult{}, err
	}
	if latest := latestRecord(records); latest != nil && latest.Status == StatusCheckedIn {
		closed := *latest
		closed.CheckOut = &now
		closed.Status = StatusCheckedOut
		if err := s.writes.Update(ctx, remote.Records, closed.ID, toDoc(closed)); err != nil {
			return ScanResult{}, err
		}
		return ScanResult{Action: ActionCheckedOut, Record: closed}, nil
	}

	entry, err := s.roster.Ensure(ctx, subjectID)
	if err != nil {
		return ScanResult{}, err
	}
	rec := Record{
		SubjectID: subjectID,
		Name:      entry.Name,
		Date:      today,
		CheckIn:   &now,
		Status:    StatusCheckedIn,
	}
	created := s.writes.Create(ctx, remote.Records, toDoc(rec))
	rec.ID = remote.DocID(created)
	return ScanResult{Action: ActionCheckedIn, Record: rec}, nil
}

// recordsFor fetches the subject's records for a day: remote first so a
// scan sees check-ins made on another device, falling back to local data
// silently when the remote store is unreachable. While mutations are still
// queued the local view is the authoritative one, so the remote is skipped;
// otherwise a record opened offline would be invisible to the resolver.
func (s *Service) recordsFor(ctx context.Context, subjectID, date string) ([]Record, error) {
	if s.writes.Online() && s.writes.Status().Pending == 0 {
		docs, err := s.remote.List(ctx, remote.Records, remote.Query{Field: "date", Equals: date})
		if err == nil {
			records := fromDocs(docs)
			return filterSubject(records, subjectID), nil
		}
		if !errors.Is(err, remote.ErrUnavailable) {
			return nil, err
		}
		log.Printf("attendance: remote query failed, using local records: %v", err)
	}
	var records []Record
	s.local.Read(localstore.KeyRecords, &records)
	return filterSubject(filterDate(records, date), subjectID), nil
}

// List returns records, optionally filtered by day and subject, newest
// check-in first.
func (s *Service) List(ctx context.Context, date, subjectID string) ([]Record, error) {
	var records []Record
	if s.writes.Online() && s.writes.Status().Pending == 0 {
		q := remote.Query{}
		if date != "" {
			q = remote.Query{Field: "date", Equals: date}
		}
		docs, err := s.remote.List(ctx, remote.Records, q)
		if err == nil {
			records = fromDocs(docs)
		} else {
			s.local.Read(localstore.KeyRecords, &records)
			records = filterDate(records, date)
		}
	} else {
		s.local.Read(localstore.KeyRecords, &records)
		records = filterDate(records, date)
	}
	if subjectID != "" {
		records = filterSubject(records, strings.ToUpper(strings.TrimSpace(subjectID)))
	}
	sortByCheckInDesc(records)
	return records, nil
}

// ExportCSV writes records as a spreadsheet-importable CSV.
func (s *Service) ExportCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"admission_id", "name", "date", "check_in", "check_out", "status"}); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{rec.SubjectID, rec.Name, rec.Date, stamp(rec.CheckIn), stamp(rec.CheckOut), rec.Status}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func latestRecord(records []Record) *Record {
	sortByCheckInDesc(records)
	if len(records) == 0 {
		return nil
	}
	return &records[0]
}

func sortByCheckInDesc(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].CheckIn, records[j].CheckIn
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func filterDate(records []Record, date string) []Record {
	if date == "" {
		return records
	}
	var out []Record
	for _, rec := range records {
		if rec.Date == date {
			out = append(out, rec)
		}
	}
	return out
}

func filterSubject(records []Record, subjectID string) []Record {
	if subjectID == "" {
		return records
	}
	var out []Record
	for _, rec := range records {
		if rec.SubjectID == subjectID {
			out = append(out, rec)
		}
	}
	return out
}
