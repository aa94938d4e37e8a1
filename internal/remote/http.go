package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPConfig addresses the hosted document API: endpoint, project and
// database identifiers, and the physical id of each logical collection.
type HTTPConfig struct {
	Endpoint    string
	ProjectID   string
	DatabaseID  string
	Collections map[string]string // logical name -> physical collection id
}

// HTTPStore talks to the hosted document-collection API. Network and
// availability errors are folded into ErrUnavailable so the caller can
// treat them uniformly as "queue and retry".
type HTTPStore struct {
	cfg  HTTPConfig
	http *http.Client
}

// NewHTTPStore creates a client with a short timeout; a slow remote is as
// good as a down one for the scan path.
func NewHTTPStore(cfg HTTPConfig) *HTTPStore {
	return &HTTPStore{
		cfg:  cfg,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *HTTPStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	body := cloneDoc(doc)
	delete(body, "id")
	var res struct {
		ID string `json:"id"`
	}
	err := s.do(ctx, http.MethodPost, s.documentsURL(collection, ""), body, &res)
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

func (s *HTTPStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc Document
	if err := s.do(ctx, http.MethodGet, s.documentsURL(collection, id), nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *HTTPStore) Update(ctx context.Context, collection, id string, doc Document) error {
	body := cloneDoc(doc)
	delete(body, "id")
	return s.do(ctx, http.MethodPatch, s.documentsURL(collection, id), body, nil)
}

func (s *HTTPStore) Delete(ctx context.Context, collection, id string) error {
	return s.do(ctx, http.MethodDelete, s.documentsURL(collection, id), nil, nil)
}

func (s *HTTPStore) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	u := s.documentsURL(collection, "")
	params := url.Values{}
	if q.Field != "" {
		params.Set("field", q.Field)
		params.Set("equals", q.Equals)
	}
	if q.SortBy != "" {
		params.Set("sort", q.SortBy)
		if q.Desc {
			params.Set("order", "desc")
		}
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}
	var res struct {
		Documents []Document `json:"documents"`
	}
	if err := s.do(ctx, http.MethodGet, u, nil, &res); err != nil {
		return nil, err
	}
	return res.Documents, nil
}

func (s *HTTPStore) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, strings.TrimRight(s.cfg.Endpoint, "/")+"/v1/health", nil, nil)
}

func (s *HTTPStore) documentsURL(collection, id string) string {
	physical, ok := s.cfg.Collections[collection]
	if !ok {
		physical = collection
	}
	u := fmt.Sprintf("%s/v1/databases/%s/collections/%s/documents",
		strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.DatabaseID, physical)
	if id != "" {
		u += "/" + id
	}
	return u
}

func (s *HTTPStore) do(ctx context.Context, method, u string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Project-ID", s.cfg.ProjectID)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrDuplicate
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("remote: status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("remote: decode response: %w", err)
		}
	}
	return nil
}
