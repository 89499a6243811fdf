// Package housekeeping runs the one recurring job this domain needs: a
// periodic health snapshot of a mounted ring, logged for an operator.
// Grounded on the teacher's storage.Scheduler, reduced from its general
// CRON/INTERVAL/ONCE job registry down to a single cron-scheduled task.
package housekeeping

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"nandring/internal/ring"
)

// HealthSnapshotter is the slice of *ring.Ring the scheduler depends on,
// mirroring the teacher's JobExecutor interface seam that lets the
// scheduler be tested without a full dependency.
type HealthSnapshotter interface {
	Scan(ctx context.Context) (ring.HealthReport, error)
	TotalGood() (int, error)
}

// Scheduler periodically scans a ring and logs a health snapshot.
type Scheduler struct {
	mu      sync.Mutex
	target  HealthSnapshotter
	cron    *cron.Cron
	running bool
}

// NewScheduler creates a Scheduler bound to target. The schedule passed
// to Start follows the robfig/cron standard five-field syntax (no
// seconds field), e.g. "*/5 * * * *" for every five minutes.
func NewScheduler(target HealthSnapshotter) *Scheduler {
	return &Scheduler{
		target: target,
		cron:   cron.New(),
	}
}

// Start registers the health-snapshot job at cronExpr and begins the
// cron loop in its own goroutine (robfig/cron's own background runner).
func (s *Scheduler) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cron.AddFunc(cronExpr, s.snapshot); err != nil {
		return fmt.Errorf("housekeeping: invalid schedule %q: %w", cronExpr, err)
	}
	s.cron.Start()
	s.running = true
	log.Printf("housekeeping: scheduler started with schedule %q", cronExpr)
	return nil
}

// Stop halts the cron loop and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	log.Println("housekeeping: scheduler stopped")
}

func (s *Scheduler) snapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	good, err := s.target.TotalGood()
	if err != nil {
		log.Printf("housekeeping: total_good failed: %v", err)
		return
	}
	rep, err := s.target.Scan(ctx)
	if err != nil {
		log.Printf("housekeeping: health scan failed: %v", err)
		return
	}
	log.Printf("housekeeping: total_good=%d good=%d bad=%d wasted_pages=%d cur_blk=%d cur_page=%d",
		good, rep.GoodBlocks, rep.BadBlocks, rep.WastedPages, rep.CurBlk, rep.CurPage)
}
