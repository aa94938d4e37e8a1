package syncer

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashutoshvm-off/library-attendance/internal/remote"
)

// Op is the kind of mutation a queued item replays.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Item is one pending mutation awaiting application to the remote store.
// Items survive restarts through the journal.
type Item struct {
	ID         string          `json:"id"`
	Op         Op              `json:"op"`
	Collection string          `json:"collection"`
	DocID      string          `json:"doc_id"`
	Payload    remote.Document `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
	// Rev increments every time the payload is rewritten in place, so a
	// sync pass can tell whether the item changed under it.
	Rev    int    `json:"rev,omitempty"`
	TempID string `json:"temp_id,omitempty"`
}

// TempID mints a locally scoped identifier for documents created before the
// remote store has assigned one.
func TempID() string {
	return "tmp_" + uuid.NewString()
}

// IsTempID reports whether id was minted locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, "tmp_")
}
