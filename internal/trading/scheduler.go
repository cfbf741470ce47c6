package trading

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"strategy-lab/internal/observability"
)

// Cycle is one unit of scheduled work for a strategy, typically a
// surveillance scan or a simulation run.
type Cycle func(ctx context.Context) error

// Scheduler runs registered cycles on a fixed interval, one goroutine
// per strategy per tick, each guarded by the manager's writer slot. A
// strategy whose previous cycle is still running is skipped for the
// tick, not queued.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	logger   *log.Logger
	metrics  *observability.Metrics

	cycles map[string]Cycle // strategy id -> cycle
	wg     sync.WaitGroup
}

// SchedulerOptions configures a Scheduler. Logger and Metrics are
// optional.
type SchedulerOptions struct {
	Manager  *Manager
	Interval time.Duration
	Logger   *log.Logger
	Metrics  *observability.Metrics
}

// NewScheduler creates a scheduler. Register cycles before Start.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	manager := opts.Manager
	if manager == nil {
		manager = NewManager()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		manager:  manager,
		interval: interval,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		cycles:   make(map[string]Cycle),
	}
}

// Register adds a cycle for a strategy. Not safe to call after Start.
func (s *Scheduler) Register(strategyID string, cycle Cycle) {
	s.cycles[strategyID] = cycle
}

// Start blocks until ctx is cancelled, running every registered cycle
// once per interval. The first round runs immediately. Start waits for
// in-flight cycles before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runAll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	for strategyID, cycle := range s.cycles {
		s.wg.Add(1)
		go func(strategyID string, cycle Cycle) {
			defer s.wg.Done()
			s.runOne(ctx, strategyID, cycle)
		}(strategyID, cycle)
	}
}

func (s *Scheduler) runOne(ctx context.Context, strategyID string, cycle Cycle) {
	err := s.manager.Run(ctx, strategyID, cycle)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.CyclesExecuted.Inc()
		}
	case errors.Is(err, ErrCycleActive):
		if s.logger != nil {
			s.logger.Printf("skip tick, cycle still running strategy=%s", strategyID)
		}
	default:
		if s.metrics != nil {
			s.metrics.CycleErrors.Inc()
		}
		if s.logger != nil {
			s.logger.Printf("cycle failed strategy=%s: %v", strategyID, err)
		}
	}
}
