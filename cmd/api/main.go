package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashutoshvm-off/library-attendance/internal/attendance"
	"github.com/ashutoshvm-off/library-attendance/internal/config"
	"github.com/ashutoshvm-off/library-attendance/internal/handler"
	"github.com/ashutoshvm-off/library-attendance/internal/httpmiddleware"
	"github.com/ashutoshvm-off/library-attendance/internal/localstore"
	"github.com/ashutoshvm-off/library-attendance/internal/remote"
	"github.com/ashutoshvm-off/library-attendance/internal/roster"
	"github.com/ashutoshvm-off/library-attendance/internal/staff"
	"github.com/ashutoshvm-off/library-attendance/internal/syncer"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(cfg config.App) error {
	local, err := localstore.Open(cfg.DataDir)
	if err != nil {
		return err
	}

	rs := newRemote(cfg)
	sync := syncer.New(local, rs, newJournal(cfg, local), syncer.Options{
		RetryCeiling:  cfg.SyncRetryCeiling,
		Interval:      cfg.SyncInterval,
		ProbeInterval: cfg.SyncProbeInterval,
	})

	ros := roster.NewService(local, rs, sync)
	att := attendance.NewService(local, rs, sync, ros)
	stf := staff.NewService(local, sync)

	ctx := context.Background()
	stf.Bootstrap(ctx, cfg.AdminUsername, cfg.AdminPassword)

	sync.Subscribe(func(st syncer.Status) {
		if st.Pending == 0 && !st.Syncing {
			return
		}
		log.Printf("sync: online=%v pending=%d failed=%d", st.Online, st.Pending, st.Failed)
	})
	sync.Start()
	defer sync.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.New(cfg, att, ros, stf, sync, rs).Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s (remote backend: %s)", cfg.HTTPPort, cfg.RemoteBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}
	log.Println("server exited")
	return nil
}

// newRemote selects the remote adapter once at startup; call sites never
// branch on backend or connectivity again.
func newRemote(cfg config.App) remote.Store {
	if !cfg.RemoteConfigured() {
		log.Println("remote store not configured, running local-only")
		return remote.Unavailable{}
	}
	switch cfg.RemoteBackend {
	case "postgres":
		rs, err := remote.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Printf("warning: postgres remote not reachable, running local-only until it returns: %v", err)
			return remote.Unavailable{}
		}
		return rs
	case "memory":
		log.Println("using in-memory remote store (dev mode)")
		return remote.NewMemory()
	default:
		return remote.NewHTTPStore(remote.HTTPConfig{
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

func newJournal(cfg config.App, local *localstore.Store) syncer.Journal {
	if cfg.QueueBackend == "redis" {
		return syncer.NewRedisJournal(cfg.RedisAddr, "attendance:sync-queue")
	}
	return syncer.NewFileJournal(local)
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
