package syncer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashutoshvm-off/library-attendance/internal/localstore"
)

// Journal persists the pending queue so it survives a restart. The queue is
// saved as a whole snapshot rather than consumed item by item because a sync
// pass mutates retry counts in place.
type Journal interface {
	Load() []Item
	Save(items []Item)
}

// FileJournal keeps the queue in the local store's sync-queue entry.
type FileJournal struct {
	store *localstore.Store
}

// NewFileJournal creates a journal backed by the local store.
func NewFileJournal(store *localstore.Store) *FileJournal {
	return &FileJournal{store: store}
}

func (j *FileJournal) Load() []Item {
	var items []Item
	j.store.Read(localstore.KeyQueue, &items)
	return items
}

func (j *FileJournal) Save(items []Item) {
	j.store.Write(localstore.KeyQueue, items)
}

// RedisJournal keeps the queue in a Redis string key, for deployments where
// several service instances share one pending queue.
type RedisJournal struct {
	client *redis.Client
	key    string
}

// NewRedisJournal connects to Redis with short timeouts.
func NewRedisJournal(addr, key string) *RedisJournal {
	if key == "" {
		key = "attendance:sync-queue"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisJournal{client: client, key: key}
}

func (j *RedisJournal) Load() []Item {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := j.client.Get(ctx, j.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("journal: redis load: %v", err)
		}
		return nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Printf("journal: decode queue: %v", err)
		return nil
	}
	return items
}

func (j *RedisJournal) Save(items []Item) {
	data, err := json.Marshal(items)
	if err != nil {
		log.Printf("journal: encode queue: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := j.client.Set(ctx, j.key, data, 0).Err(); err != nil {
		log.Printf("journal: redis save: %v", err)
	}
}

// Healthy verifies Redis connectivity; used by the health endpoint.
func (j *RedisJournal) Healthy(ctx context.Context) bool {
	if j == nil || j.client == nil {
		return false
	}
	return j.client.Ping(ctx).Err() == nil
}
