package main

import (
	"context"
	"log"
	"time"

	"github.com/ashutoshvm-off/library-attendance/internal/config"
	"github.com/ashutoshvm-off/library-attendance/internal/localstore"
	"github.com/ashutoshvm-off/library-attendance/internal/remote"
	"github.com/ashutoshvm-off/library-attendance/internal/roster"
	"github.com/ashutoshvm-off/library-attendance/internal/syncer"
)

// flush drains the pending sync queue once and exits. Run it against the
// same DATA_DIR as the server (while the server is stopped) to push queued
// mutations after an extended outage.
func main() {
	cfg := config.Load()

	local, err := localstore.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("open local store: %v", err)
	}

	var rs remote.Store = remote.Unavailable{}
	if cfg.RemoteConfigured() {
		switch cfg.RemoteBackend {
		case "postgres":
			pg, err := remote.NewPostgresStore(cfg.DatabaseURL)
			if err != nil {
				log.Fatalf("postgres remote: %v", err)
			}
			defer pg.Close()
			rs = pg
		case "memory":
			log.Fatal("memory remote holds no durable state; nothing to flush into")
		default:
			rs = remote.NewHTTPStore(remote.HTTPConfig{
				Endpoint:   cfg.RemoteEndpoint,
				ProjectID:  cfg.RemoteProjectID,
				DatabaseID: cfg.RemoteDatabaseID,
				Collections: map[string]string{
					remote.Records:  cfg.CollectionRecords,
					remote.Roster:   cfg.CollectionRoster,
					remote.Staff:    cfg.CollectionStaff,
					remote.Sessions: cfg.CollectionSessions,
				},
			})
		}
	}

	var journal syncer.Journal
	if cfg.QueueBackend == "redis" {
		journal = syncer.NewRedisJournal(cfg.RedisAddr, "attendance:sync-queue")
	} else {
		journal = syncer.NewFileJournal(local)
	}

	sync := syncer.New(local, rs, journal, syncer.Options{RetryCeiling: cfg.SyncRetryCeiling})
	// The roster service registers the duplicate guard the retry path needs.
	roster.NewService(local, rs, sync)

	before := sync.Status()
	if before.Pending == 0 {
		log.Println("queue empty, nothing to flush")
		return
	}
	log.Printf("flushing %d pending item(s)...", before.Pending)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if !sync.Probe(ctx) {
		log.Fatal("remote store unreachable, queue left intact")
	}
	sync.SyncNow(ctx)

	after := sync.Status()
	log.Printf("done: pending=%d failed=%d last_sync=%s", after.Pending, after.Failed, after.LastSync.Format(time.RFC3339))
}
