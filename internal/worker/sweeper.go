package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/martinsuchenak/vpcd/internal/ec2"
	"github.com/martinsuchenak/vpcd/internal/log"
)

// Sweeper advances asynchronous resource lifecycles in the background.
// NAT gateways settle from pending to available (and from deleting to
// deleted), and soft-deleted prefix lists expire once their linger
// window has passed. Each active backend is swept as its own job on
// the worker pool.
type Sweeper struct {
	dir       *ec2.Directory
	pool      *Pool
	cron      *cron.Cron
	natSettle time.Duration

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper that runs every interval. natSettle is
// how long a NAT gateway stays pending before it becomes available.
func NewSweeper(dir *ec2.Directory, interval, natSettle time.Duration) *Sweeper {
	s := &Sweeper{
		dir:       dir,
		pool:      NewPool(4),
		cron:      cron.New(),
		natSettle: natSettle,
	}
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(s.Sweep))
	return s
}

// Start starts the sweep schedule.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	log.Info("Starting background sweeper", "nat_settle", s.natSettle)
	s.pool.Start()
	s.cron.Start()
}

// Stop stops the schedule and waits for in-flight sweeps to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	log.Info("Stopping background sweeper")
	<-s.cron.Stop().Done()
	s.pool.Stop()
}

// Sweep runs one pass over every active backend. It is invoked on the
// cron schedule but can also be called directly to force a pass.
func (s *Sweeper) Sweep() {
	now := time.Now()
	for _, backend := range s.dir.Active() {
		b := backend
		job := Job{
			ID: fmt.Sprintf("sweep-%s-%s", b.AccountID, b.Region),
			Handler: func(ctx context.Context) error {
				nats := b.SweepNatGateways(now, s.natSettle)
				lists := b.SweepPrefixLists(now)
				if nats > 0 || lists > 0 {
					log.Debug("Sweep advanced resources",
						"account", b.AccountID, "region", b.Region,
						"nat_gateways", nats, "prefix_lists", lists)
				}
				return nil
			},
		}
		if err := s.pool.Submit(job); err != nil {
			log.Warn("Sweep job not submitted", "error", err)
			return
		}
	}
}
