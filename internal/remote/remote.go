// Package remote abstracts the hosted document-collection store. Call sites
// never branch on connectivity themselves; they hold a Store chosen once at
// startup and treat ErrUnavailable as "queue it for later".
package remote

import (
	"context"
	"errors"
)

// Logical collection names shared by every adapter. Adapters map these to
// their physical collection identifiers.
const (
	Records  = "attendance-records"
	Roster   = "roster"
	Staff    = "staff-accounts"
	Sessions = "login-sessions"
)

var (
	// ErrUnavailable marks transient failures: the remote store could not
	// be reached or is not configured. Mutations hitting it belong on the
	// sync queue.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrNotFound marks a document that does not exist remotely.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate marks a create rejected by the store's own uniqueness.
	ErrDuplicate = errors.New("duplicate document")
)

// Query is the small query subset the service needs: equality on one field,
// ordering, and a result cap.
type Query struct {
	Field  string
	Equals string
	SortBy string
	Desc   bool
	Limit  int
}

// Document is a schemaless entity; the "id" key holds its identifier.
type Document = map[string]any

// Store is the document-collection capability. Create returns the
// server-assigned identifier.
type Store interface {
	Create(ctx context.Context, collection string, doc Document) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Update(ctx context.Context, collection, id string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string, q Query) ([]Document, error)
	Ping(ctx context.Context) error
}

// DocID returns a document's identifier, empty when unset.
func DocID(doc Document) string {
	id, _ := doc["id"].(string)
	return id
}
