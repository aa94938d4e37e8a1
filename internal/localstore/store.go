package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Keys for the persisted collections and bookkeeping entries. These mirror
// the logical collections held in the remote store plus queue state.
const (
	KeyRecords  = "attendance-records"
	KeyRoster   = "roster"
	KeyStaff    = "staff-accounts"
	KeySessions = "login-sessions"
	KeyQueue    = "sync-queue"
	KeyLastSync = "last-sync-time"
	KeyProfile  = "current-staff"
	KeySession  = "current-session"
)

// Store is a durable keyed JSON store: one file per key under a data
// directory. Writes go through a temp file and rename so a crash never
// leaves a half-written entry. Individual reads and writes are atomic per
// key; there is no transaction across keys.
type Store struct {
	dir string
	mu  sync.Mutex
}

// Open creates the data directory if needed and returns a store rooted there.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("localstore: data dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Read unmarshals the entry for key into v. A missing entry leaves v
// untouched and returns false.
func (s *Store) Read(key string, v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("localstore: read %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("localstore: decode %s: %v", key, err)
		return false
	}
	return true
}

// Write replaces the entry for key. Failures are logged and swallowed; a
// caller has no useful recovery path for a full disk.
func (s *Store) Write(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("localstore: encode %s: %v", key, err)
		return
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Printf("localstore: write %s: %v", key, err)
		return
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		log.Printf("localstore: rename %s: %v", key, err)
	}
}

// Delete removes the entry for key if present.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		log.Printf("localstore: delete %s: %v", key, err)
	}
}

// ReadTime reads an RFC 3339 timestamp entry, zero time when absent.
func (s *Store) ReadTime(key string) time.Time {
	var raw string
	if !s.Read(key, &raw) {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		log.Printf("localstore: bad timestamp in %s: %v", key, err)
		return time.Time{}
	}
	return t
}

// WriteTime stores t as an RFC 3339 timestamp entry.
func (s *Store) WriteTime(key string, t time.Time) {
	s.Write(key, t.UTC().Format(time.RFC3339))
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
