package syncer

import (
	"context"
	"log"
	"time"
)

// Start probes connectivity once, then runs the background monitor: a ping
// loop driving the offline/online state machine and a flush ticker that
// drains the queue while items remain. Stop tears both down.
func (s *Service) Start() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if s.transition(s.remote.Ping(ctx) == nil) {
		s.SyncNow(ctx)
	}
	cancel()

	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()
}

// Stop halts the monitor. A sync pass already in flight runs to completion.
func (s *Service) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
}

// Probe checks connectivity immediately, outside the monitor's schedule,
// syncing pending items when the check restores the online state.
func (s *Service) Probe(ctx context.Context) bool {
	if s.transition(s.remote.Ping(ctx) == nil) {
		s.SyncNow(ctx)
	}
	return s.online.Load()
}

func (s *Service) run() {
	defer s.wg.Done()
	probe := time.NewTicker(s.probeInterval)
	flush := time.NewTicker(s.interval)
	defer probe.Stop()
	defer flush.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-probe.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if s.transition(s.remote.Ping(ctx) == nil) {
				s.SyncNow(ctx)
			}
			cancel()
		case <-flush.C:
			if s.online.Load() && s.Status().Pending > 0 {
				s.SyncNow(context.Background())
			}
		}
	}
}

// transition advances the offline/online state machine and reports whether
// this call took the offline→online edge, the single trigger for an
// immediate sync attempt.
func (s *Service) transition(online bool) bool {
	was := s.online.Swap(online)
	if was == online {
		return false
	}
	if online {
		log.Println("syncer: remote store reachable, attempting sync")
	} else {
		log.Println("syncer: remote store unreachable, holding mutations locally")
	}
	s.notify()
	return online
}
