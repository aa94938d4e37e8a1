// Package roster manages the student roster keyed by admission id.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ashutoshvm-off/library-attendance/internal/localstore"
	"github.com/ashutoshvm-off/library-attendance/internal/remote"
	"github.com/ashutoshvm-off/library-attendance/internal/syncer"
)

var (
	// ErrDuplicate rejects a create whose admission id is already rostered.
	ErrDuplicate = errors.New("admission id already registered")
	// ErrNotFound marks a missing roster entry.
	ErrNotFound = errors.New("roster entry not found")
	// ErrInvalid rejects an entry missing required fields.
	ErrInvalid = errors.New("admission id and name required")
)

// Entry is one subject's roster profile.
type Entry struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Service owns roster reads and routes mutations through the sync queue.
type Service struct {
	local  *localstore.Store
	remote remote.Store
	writes *syncer.Service
}

// NewService wires the roster service and registers its duplicate guard
// with the sync queue so retried creates reconcile instead of duplicating.
func NewService(local *localstore.Store, rs remote.Store, writes *syncer.Service) *Service {
	s := &Service{local: local, remote: rs, writes: writes}
	writes.RegisterGuard(remote.Roster, s.createGuard)
	return s
}

// Create registers a subject explicitly. Duplicate admission ids fail with
// ErrDuplicate before any local or remote state changes.
func (s *Service) Create(ctx context.Context, entry Entry) (Entry, error) {
	entry.SubjectID = normalize(entry.SubjectID)
	if entry.SubjectID == "" || strings.TrimSpace(entry.Name) == "" {
		return Entry{}, ErrInvalid
	}
	if _, ok := s.lookup(ctx, entry.SubjectID); ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrDuplicate, entry.SubjectID)
	}
	entry.CreatedAt = time.Now().UTC()
	created := s.writes.Create(ctx, remote.Roster, toDoc(entry))
	entry.ID = remote.DocID(created)
	return entry, nil
}

// Ensure returns the subject's entry, auto-registering an unseen admission
// id with a placeholder display name.
func (s *Service) Ensure(ctx context.Context, subjectID string) (Entry, error) {
	subjectID = normalize(subjectID)
	if subjectID == "" {
		return Entry{}, ErrInvalid
	}
	if entry, ok := s.lookup(ctx, subjectID); ok {
		return entry, nil
	}
	entry := Entry{
		SubjectID: subjectID,
		Name:      "Student " + subjectID,
		CreatedAt: time.Now().UTC(),
	}
	created := s.writes.Create(ctx, remote.Roster, toDoc(entry))
	entry.ID = remote.DocID(created)
	return entry, nil
}

// List returns all roster entries, remote first with silent local fallback.
func (s *Service) List(ctx context.Context) []Entry {
	if s.writes.Online() && s.writes.Status().Pending == 0 {
		docs, err := s.remote.List(ctx, remote.Roster, remote.Query{SortBy: "subject_id"})
		if err == nil {
			return fromDocs(docs)
		}
		log.Printf("roster: remote list failed, using local roster: %v", err)
	}
	var entries []Entry
	s.local.Read(localstore.KeyRoster, &entries)
	return entries
}

// Update rewrites an entry's profile fields. The admission id itself is
// immutable; attendance records reference it.
func (s *Service) Update(ctx context.Context, id string, entry Entry) (Entry, error) {
	existing, ok := s.local.Find(localstore.KeyRoster, id)
	if !ok {
		return Entry{}, ErrNotFound
	}
	current, _ := fromDoc(existing)
	current.Name = entry.Name
	current.Email = entry.Email
	current.Phone = entry.Phone
	if strings.TrimSpace(current.Name) == "" {
		return Entry{}, ErrInvalid
	}
	if err := s.writes.Update(ctx, remote.Roster, id, toDoc(current)); err != nil {
		return Entry{}, ErrNotFound
	}
	current.ID = id
	return current, nil
}

// Delete removes an entry by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.writes.Delete(ctx, remote.Roster, id); err != nil {
		return ErrNotFound
	}
	return nil
}

// lookup finds an entry by admission id, consulting the remote store only
// when the local view is fully synced.
func (s *Service) lookup(ctx context.Context, subjectID string) (Entry, bool) {
	if s.writes.Online() && s.writes.Status().Pending == 0 {
		docs, err := s.remote.List(ctx, remote.Roster, remote.Query{Field: "subject_id", Equals: subjectID, Limit: 1})
		if err == nil && len(docs) > 0 {
			if entry, ok := fromDoc(docs[0]); ok {
				return entry, true
			}
		}
		if err != nil {
			log.Printf("roster: remote lookup failed, using local roster: %v", err)
		}
	}
	var entries []Entry
	s.local.Read(localstore.KeyRoster, &entries)
	for _, entry := range entries {
		if entry.SubjectID == subjectID {
			return entry, true
		}
	}
	return Entry{}, false
}

// createGuard is the sync queue's pre-condition for retried roster creates:
// the entry may have been created by another client or a previous partial
// attempt, in which case the retry reconciles to the existing document.
func (s *Service) createGuard(ctx context.Context, store remote.Store, payload remote.Document) (string, bool, error) {
	subjectID, _ := payload["subject_id"].(string)
	if subjectID == "" {
		return "", false, nil
	}
	docs, err := store.List(ctx, remote.Roster, remote.Query{Field: "subject_id", Equals: subjectID, Limit: 1})
	if err != nil {
		return "", false, err
	}
	if len(docs) == 0 {
		return "", false, nil
	}
	return remote.DocID(docs[0]), true, nil
}

func normalize(subjectID string) string {
	return strings.ToUpper(strings.TrimSpace(subjectID))
}

func toDoc(entry Entry) remote.Document {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("roster: encode entry: %v", err)
		return remote.Document{}
	}
	var doc remote.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("roster: decode entry: %v", err)
		return remote.Document{}
	}
	return doc
}

func fromDoc(doc remote.Document) (Entry, bool) {
	data, err := json.Marshal(doc)
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("roster: malformed roster document %q: %v", remote.DocID(doc), err)
		return Entry{}, false
	}
	return entry, true
}

func fromDocs(docs []remote.Document) []Entry {
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		if entry, ok := fromDoc(doc); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}
