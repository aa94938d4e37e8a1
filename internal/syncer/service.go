// Package syncer owns the offline mutation queue. Every write to a local
// collection goes through it: the local store is updated first and the
// caller gets that result back immediately, then the remote store is tried
// once. Failed or offline mutations land on a durable queue that is drained
// on a timer and whenever connectivity returns.
package syncer

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ashutoshvm-off/library-attendance/internal/localstore"
	"github.com/ashutoshvm-off/library-attendance/internal/remote"
)

// ErrNotFound is returned when an update or delete targets a document that
// is absent from the local store.
var ErrNotFound = errors.New("document not found locally")

// Guard is a per-collection pre-condition run before a queued create is
// retried. It reports the id of an equivalent document that already exists
// remotely so the retry can reconcile instead of duplicating.
type Guard func(ctx context.Context, store remote.Store, payload remote.Document) (existingID string, exists bool, err error)

// Status is the derived sync state broadcast to observers.
type Status struct {
	Online   bool      `json:"online"`
	Syncing  bool      `json:"syncing"`
	Pending  int       `json:"pending"`
	Failed   int       `json:"failed"`
	LastSync time.Time `json:"last_sync,omitempty"`
}

// Service is the sync queue. Construct with New, register guards, then
// Start; the caller owns the lifecycle.
type Service struct {
	local   *localstore.Store
	remote  remote.Store
	journal Journal
	ceiling int

	interval      time.Duration
	probeInterval time.Duration

	mu        sync.Mutex
	queue     []Item
	failed    int
	lastSync  time.Time
	observers []func(Status)
	guards    map[string]Guard

	online  atomic.Bool
	syncing atomic.Bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// Options tunes the service; zero values pick defaults.
type Options struct {
	RetryCeiling  int
	Interval      time.Duration
	ProbeInterval time.Duration
}

// New builds a sync service over the given stores. Any queue persisted by a
// previous run is reloaded from the journal.
func New(local *localstore.Store, rs remote.Store, journal Journal, opts Options) *Service {
	if opts.RetryCeiling <= 0 {
		opts.RetryCeiling = 3
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 15 * time.Second
	}
	s := &Service{
		local:         local,
		remote:        rs,
		journal:       journal,
		ceiling:       opts.RetryCeiling,
		interval:      opts.Interval,
		probeInterval: opts.ProbeInterval,
		guards:        make(map[string]Guard),
		queue:         journal.Load(),
		lastSync:      local.ReadTime(localstore.KeyLastSync),
	}
	return s
}

// RegisterGuard installs the duplicate guard for a collection's creates.
func (s *Service) RegisterGuard(collection string, g Guard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guards[collection] = g
}

// Subscribe adds an observer notified on every status change.
func (s *Service) Subscribe(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Online reports the last observed connectivity state.
func (s *Service) Online() bool { return s.online.Load() }

// Status recomputes the derived sync state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Online:   s.online.Load(),
		Syncing:  s.syncing.Load(),
		Pending:  len(s.queue),
		Failed:   s.failed,
		LastSync: s.lastSync,
	}
}

// Create applies a create to the local store and best-effort to the remote
// store. The returned document always carries a usable id: the server's when
// the remote accepted it, otherwise a temporary one that is rewritten in the
// local store once the create lands. The returned document is the caller's
// alone; the queue keeps its own copy. Create never fails from the caller's
// point of view.
func (s *Service) Create(ctx context.Context, collection string, doc remote.Document) remote.Document {
	local := cloneDoc(doc)
	local["id"] = TempID()
	s.local.Append(collection, local)

	if s.online.Load() {
		if id, err := s.remote.Create(ctx, collection, local); err == nil {
			s.local.RewriteID(collection, localstore.DocID(local), id)
			local["id"] = id
			s.markSynced()
			return local
		} else if !errors.Is(err, remote.ErrUnavailable) {
			log.Printf("syncer: create %s rejected remotely, queueing: %v", collection, err)
		}
	}
	tempID := localstore.DocID(local)
	s.enqueue(ctx, Item{
		Op:         OpCreate,
		Collection: collection,
		DocID:      tempID,
		TempID:     tempID,
		Payload:    cloneDoc(local),
	})
	return local
}

// Update applies an update to the local store and best-effort to the remote
// store. ErrNotFound is returned when no local document has the given id.
func (s *Service) Update(ctx context.Context, collection, id string, doc remote.Document) error {
	updated := cloneDoc(doc)
	updated["id"] = id
	if !s.local.Replace(collection, id, updated) {
		return ErrNotFound
	}

	// A document still carrying a temporary id has not reached the remote
	// store yet; its queued create will ship the updated payload.
	if IsTempID(id) {
		s.rewritePending(collection, id, updated)
		return nil
	}

	if s.online.Load() {
		if err := s.remote.Update(ctx, collection, id, updated); err == nil {
			s.markSynced()
			return nil
		}
	}
	s.enqueue(ctx, Item{Op: OpUpdate, Collection: collection, DocID: id, Payload: updated})
	return nil
}

// Delete removes a document locally and best-effort remotely.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	if !s.local.Remove(collection, id) {
		return ErrNotFound
	}
	if IsTempID(id) {
		// Never reached the remote store: cancel any pending work for it.
		s.dropPending(collection, id)
		return nil
	}
	if s.online.Load() {
		if err := s.remote.Delete(ctx, collection, id); err == nil || errors.Is(err, remote.ErrNotFound) {
			s.markSynced()
			return nil
		}
	}
	s.enqueue(ctx, Item{Op: OpDelete, Collection: collection, DocID: id})
	return nil
}

// SyncNow runs one sync pass. Overlapping triggers are no-ops while a pass
// is in flight.
func (s *Service) SyncNow(ctx context.Context) {
	if !s.syncing.CompareAndSwap(false, true) {
		return
	}
	defer s.syncing.Store(false)

	metricPasses.Inc()
	s.notify()
	snapshot := s.snapshotQueue()
	if len(snapshot) == 0 {
		s.notify()
		return
	}

	applied := make(map[string]bool, len(snapshot))
	exhausted := make(map[string]bool)
	anySuccess := false

	for i := range snapshot {
		item := &snapshot[i]
		if err := s.attempt(ctx, item); err != nil {
			item.RetryCount++
			if item.RetryCount >= s.ceiling {
				exhausted[item.ID] = true
				log.Printf("syncer: dropping %s %s/%s after %d attempts: %v",
					item.Op, item.Collection, item.DocID, item.RetryCount, err)
			} else {
				log.Printf("syncer: %s %s/%s failed (attempt %d): %v",
					item.Op, item.Collection, item.DocID, item.RetryCount, err)
			}
			continue
		}
		applied[item.ID] = true
		anySuccess = true
	}

	s.mu.Lock()
	retries := make(map[string]int, len(snapshot))
	revs := make(map[string]int, len(snapshot))
	for _, item := range snapshot {
		retries[item.ID] = item.RetryCount
		revs[item.ID] = item.Rev
	}
	kept := s.queue[:0]
	for _, item := range s.queue {
		if applied[item.ID] {
			if item.Rev == revs[item.ID] {
				continue
			}
			// The payload was rewritten while the pass applied the
			// snapshot's older copy. The create did land remotely and its
			// ids are reconciled, so the newer payload is still owed:
			// replay it as an update against the reconciled id.
			item.Op = OpUpdate
			item.TempID = ""
			item.RetryCount = 0
			kept = append(kept, item)
			continue
		}
		if exhausted[item.ID] {
			s.failed++
			metricFailed.Inc()
			continue
		}
		if n, ok := retries[item.ID]; ok {
			item.RetryCount = n
		}
		kept = append(kept, item)
	}
	s.queue = kept
	if anySuccess {
		s.lastSync = time.Now().UTC()
		s.local.WriteTime(localstore.KeyLastSync, s.lastSync)
	}
	s.journal.Save(s.queue)
	s.mu.Unlock()
	s.notify()
}

// attempt replays one queued item against the remote store.
func (s *Service) attempt(ctx context.Context, item *Item) error {
	switch item.Op {
	case OpCreate:
		if guard, ok := s.guard(item.Collection); ok {
			existingID, exists, err := guard(ctx, s.remote, item.Payload)
			if err == nil && exists {
				// Already created by another client or a prior partial
				// attempt: reconcile ids instead of duplicating.
				s.reconcileCreate(item, existingID)
				return nil
			}
			if err != nil && !errors.Is(err, remote.ErrUnavailable) {
				log.Printf("syncer: guard for %s errored: %v", item.Collection, err)
			}
		}
		id, err := s.remote.Create(ctx, item.Collection, item.Payload)
		if err != nil {
			return err
		}
		s.reconcileCreate(item, id)
		return nil
	case OpUpdate:
		err := s.remote.Update(ctx, item.Collection, item.DocID, item.Payload)
		if errors.Is(err, remote.ErrNotFound) {
			// The target is gone remotely; retrying cannot help.
			log.Printf("syncer: update %s/%s: target gone remotely, discarding", item.Collection, item.DocID)
			return nil
		}
		return err
	case OpDelete:
		err := s.remote.Delete(ctx, item.Collection, item.DocID)
		if errors.Is(err, remote.ErrNotFound) {
			return nil
		}
		return err
	}
	log.Printf("syncer: unknown op %q, discarding", item.Op)
	return nil
}

// reconcileCreate swaps the temporary id for the server-assigned one in the
// local collection and in any queued items that still reference it.
func (s *Service) reconcileCreate(item *Item, serverID string) {
	if item.TempID == "" || serverID == "" || item.TempID == serverID {
		return
	}
	s.local.RewriteID(item.Collection, item.TempID, serverID)
	s.mu.Lock()
	for i := range s.queue {
		q := &s.queue[i]
		if q.Collection == item.Collection && q.DocID == item.TempID {
			q.DocID = serverID
			if q.Payload != nil {
				q.Payload["id"] = serverID
			}
		}
	}
	s.mu.Unlock()
}

func (s *Service) guard(collection string) (Guard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guards[collection]
	return g, ok
}

func (s *Service) snapshotQueue() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Item, len(s.queue))
	copy(snapshot, s.queue)
	return snapshot
}

func (s *Service) enqueue(ctx context.Context, item Item) {
	s.mu.Lock()
	item.ID = uuid.NewString()
	item.EnqueuedAt = time.Now().UTC()
	s.queue = append(s.queue, item)
	s.journal.Save(s.queue)
	s.mu.Unlock()
	s.notify()
	if s.online.Load() {
		go s.SyncNow(context.Background())
	}
}

// rewritePending folds an updated payload into the queued create for a
// document that only exists locally.
func (s *Service) rewritePending(collection, tempID string, payload remote.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queue {
		q := &s.queue[i]
		if q.Op == OpCreate && q.Collection == collection && q.TempID == tempID {
			q.Payload = payload
			q.Rev++
			s.journal.Save(s.queue)
			return
		}
	}
}

// dropPending discards queued work for a document deleted before it ever
// reached the remote store.
func (s *Service) dropPending(collection, tempID string) {
	s.mu.Lock()
	kept := s.queue[:0]
	for _, q := range s.queue {
		if q.Collection == collection && (q.TempID == tempID || q.DocID == tempID) {
			continue
		}
		kept = append(kept, q)
	}
	s.queue = kept
	s.journal.Save(s.queue)
	s.mu.Unlock()
	s.notify()
}

func (s *Service) markSynced() {
	s.mu.Lock()
	s.lastSync = time.Now().UTC()
	s.local.WriteTime(localstore.KeyLastSync, s.lastSync)
	s.mu.Unlock()
	s.notify()
}

// notify recomputes status, pushes it to observers, and mirrors it to the
// metrics.
func (s *Service) notify() {
	st := s.Status()
	metricPending.Set(float64(st.Pending))
	if st.Online {
		metricOnline.Set(1)
	} else {
		metricOnline.Set(0)
	}
	if !st.LastSync.IsZero() {
		metricLastSync.Set(float64(st.LastSync.Unix()))
	}
	s.mu.Lock()
	observers := make([]func(Status), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(st)
	}
}

func cloneDoc(doc remote.Document) remote.Document {
	clone := make(remote.Document, len(doc)+1)
	for k, v := range doc {
		clone[k] = v
	}
	return clone
}
