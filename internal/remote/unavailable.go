package remote

import "context"

// Unavailable is the null adapter used when the remote store is not
// configured: every call fails with ErrUnavailable so the service runs in
// local-only mode with all mutations queued.
type Unavailable struct{}

func (Unavailable) Create(context.Context, string, Document) (string, error) {
	return "", ErrUnavailable
}
func (Unavailable) Get(context.Context, string, string) (Document, error) { return nil, ErrUnavailable }
func (Unavailable) Update(context.Context, string, string, Document) error {
	return ErrUnavailable
}
func (Unavailable) Delete(context.Context, string, string) error        { return ErrUnavailable }
func (Unavailable) List(context.Context, string, Query) ([]Document, error) {
	return nil, ErrUnavailable
}
func (Unavailable) Ping(context.Context) error { return ErrUnavailable }
