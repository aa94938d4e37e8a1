// Package staff manages staff accounts and their login sessions.
package staff

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ashutoshvm-off/library-attendance/internal/localstore"
	"github.com/ashutoshvm-off/library-attendance/internal/remote"
	"github.com/ashutoshvm-off/library-attendance/internal/syncer"
)

var (
	// ErrBadCredentials covers unknown usernames and wrong passwords alike.
	ErrBadCredentials = errors.New("invalid username or password")
	// ErrDuplicate rejects a second account with the same username.
	ErrDuplicate = errors.New("username already taken")
)

// Account is a staff login account. The bcrypt hash never leaves the
// service in API responses.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session records one login, persisted so an audit trail survives offline
// periods like any other mutation.
type Session struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	Username  string    `json:"username"`
	StartedAt time.Time `json:"started_at"`
}

// Service verifies credentials and tracks sessions through the sync queue.
type Service struct {
	local  *localstore.Store
	writes *syncer.Service
}

// NewService wires the staff service.
func NewService(local *localstore.Store, writes *syncer.Service) *Service {
	return &Service{local: local, writes: writes}
}

// Bootstrap seeds the admin account from config on first run. A blank
// password disables seeding.
func (s *Service) Bootstrap(ctx context.Context, username, password string) {
	if password == "" {
		return
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if _, ok := s.find(username); ok {
		return
	}
	if _, err := s.CreateAccount(ctx, username, password, "Administrator", "admin"); err != nil {
		log.Printf("staff: bootstrap admin: %v", err)
		return
	}
	log.Printf("staff: seeded admin account %q", username)
}

// CreateAccount registers a staff account with a bcrypt-hashed password.
func (s *Service) CreateAccount(ctx context.Context, username, password, name, role string) (Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return Account{}, ErrBadCredentials
	}
	if _, ok := s.find(username); ok {
		return Account{}, ErrDuplicate
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	acct := Account{
		Username:     username,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	created := s.writes.Create(ctx, remote.Staff, toDoc(acct))
	acct.ID = remote.DocID(created)
	return acct, nil
}

// Login verifies credentials and opens a session. The session document goes
// through the write path so an offline login is still recorded.
func (s *Service) Login(ctx context.Context, username, password string) (Account, Session, error) {
	acct, ok := s.find(strings.ToLower(strings.TrimSpace(username)))
	if !ok {
		return Account{}, Session{}, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return Account{}, Session{}, ErrBadCredentials
	}
	sess := Session{
		StaffID:   acct.ID,
		Username:  acct.Username,
		StartedAt: time.Now().UTC(),
	}
	created := s.writes.Create(ctx, remote.Sessions, sessionDoc(sess))
	sess.ID = remote.DocID(created)

	s.local.Write(localstore.KeyProfile, publicAccount(acct))
	s.local.Write(localstore.KeySession, sess)
	return publicAccount(acct), sess, nil
}

// Logout closes the session and clears the restored-login entries.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	s.local.Delete(localstore.KeyProfile)
	s.local.Delete(localstore.KeySession)
	if sessionID == "" {
		return nil
	}
	return s.writes.Delete(ctx, remote.Sessions, sessionID)
}

// CurrentSession restores the persisted session, if any, after a restart.
func (s *Service) CurrentSession() (Session, bool) {
	var sess Session
	if !s.local.Read(localstore.KeySession, &sess) {
		return Session{}, false
	}
	return sess, true
}

func (s *Service) find(username string) (Account, bool) {
	var accounts []Account
	s.local.Read(localstore.KeyStaff, &accounts)
	for _, acct := range accounts {
		if acct.Username == username {
			return acct, true
		}
	}
	return Account{}, false
}

func publicAccount(acct Account) Account {
	acct.PasswordHash = ""
	return acct
}

func toDoc(acct Account) remote.Document {
	return marshalDoc(acct)
}

func sessionDoc(sess Session) remote.Document {
	return marshalDoc(sess)
}

func marshalDoc(v any) remote.Document {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("staff: encode document: %v", err)
		return remote.Document{}
	}
	var doc remote.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("staff: decode document: %v", err)
		return remote.Document{}
	}
	return doc
}
