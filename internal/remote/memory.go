package remote

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// Memory is an in-process adapter for development and tests. It mimics the
// hosted store's behavior, including its lack of uniqueness enforcement,
// and can be flipped unavailable to simulate connectivity loss.
type Memory struct {
	mu          sync.Mutex
	collections map[string][]Document
	nextID      int
	available   bool

	// Hook, when set, runs before every mutation; a non-nil return is
	// surfaced as that call's error. Used to inject per-item failures.
	Hook func(op, collection, id string) error
}

// NewMemory returns an empty, available in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]Document), available: true}
}

// SetAvailable toggles simulated connectivity.
func (m *Memory) SetAvailable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = ok
}

func (m *Memory) Create(_ context.Context, collection string, doc Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return "", ErrUnavailable
	}
	if m.Hook != nil {
		if err := m.Hook("create", collection, DocID(doc)); err != nil {
			return "", err
		}
	}
	m.nextID++
	id := "doc_" + strconv.Itoa(m.nextID)
	clone := cloneDoc(doc)
	clone["id"] = id
	m.collections[collection] = append(m.collections[collection], clone)
	return id, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return nil, ErrUnavailable
	}
	for _, doc := range m.collections[collection] {
		if DocID(doc) == id {
			return cloneDoc(doc), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Update(_ context.Context, collection, id string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return ErrUnavailable
	}
	if m.Hook != nil {
		if err := m.Hook("update", collection, id); err != nil {
			return err
		}
	}
	docs := m.collections[collection]
	for i := range docs {
		if DocID(docs[i]) == id {
			clone := cloneDoc(doc)
			clone["id"] = id
			docs[i] = clone
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return ErrUnavailable
	}
	if m.Hook != nil {
		if err := m.Hook("delete", collection, id); err != nil {
			return err
		}
	}
	docs := m.collections[collection]
	for i := range docs {
		if DocID(docs[i]) == id {
			m.collections[collection] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) List(_ context.Context, collection string, q Query) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return nil, ErrUnavailable
	}
	var out []Document
	for _, doc := range m.collections[collection] {
		if q.Field != "" {
			val, _ := doc[q.Field].(string)
			if val != q.Equals {
				continue
			}
		}
		out = append(out, cloneDoc(doc))
	}
	if q.SortBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i][q.SortBy].(string)
			b, _ := out[j][q.SortBy].(string)
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return ErrUnavailable
	}
	return nil
}

// Count returns the number of documents in a collection; test helper.
func (m *Memory) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection])
}

func cloneDoc(doc Document) Document {
	clone := make(Document, len(doc))
	for k, v := range doc {
		clone[k] = v
	}
	return clone
}
