package pipeline

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Loop lifecycle states as reported by the supervisor.
const (
	LoopStateStarting = "starting"
	LoopStateRunning  = "running"
	LoopStateSleeping = "sleeping"
)

// LoopStatus is one cadence loop's live state snapshot.
type LoopStatus struct {
	Name      string    `json:"name"`
	Interval  string    `json:"interval"`
	State     string    `json:"state"`
	Passes    int       `json:"passes"`
	Errors    int       `json:"errors"`
	LastPass  time.Time `json:"last_pass,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Supervisor runs the cadence loops on a worker pool and the weekly
// discovery jobs on a cron schedule. Start returns immediately; loops run
// until the context is cancelled.
type Supervisor struct {
	logger   *zap.Logger
	pipeline *Pipeline
	loops    []Loop

	pool   pond.Pool
	cron   *cron.Cron
	states *xsync.Map[string, LoopStatus]
}

// DiscoveryCronSpec triggers both discovery jobs weekly.
const DiscoveryCronSpec = "@every 168h"

// NewSupervisor builds a supervisor for the standard cadence loops.
func NewSupervisor(logger *zap.Logger, p *Pipeline) *Supervisor {
	loops := CadenceLoops()
	return &Supervisor{
		logger:   logger,
		pipeline: p,
		loops:    loops,
		pool:     pond.NewPool(len(loops) + 2),
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		states:   xsync.NewMap[string, LoopStatus](),
	}
}

// Start launches every cadence loop and schedules the weekly discovery
// jobs. It does not block.
func (s *Supervisor) Start(ctx context.Context) error {
	for _, loop := range s.loops {
		loop := loop
		s.states.Store(loop.Name, LoopStatus{
			Name:     loop.Name,
			Interval: loop.Interval.String(),
			State:    LoopStateStarting,
		})
		s.pool.Submit(func() {
			s.runLoop(ctx, loop)
		})
	}

	if _, err := s.cron.AddFunc(DiscoveryCronSpec, func() { s.runDiscovery(ctx) }); err != nil {
		return err
	}
	s.cron.Start()

	s.logger.Info("Supervisor started",
		zap.Int("loops", len(s.loops)),
		zap.String("discovery_schedule", DiscoveryCronSpec))
	return nil
}

// Stop halts the cron scheduler and waits for loop goroutines to drain.
// Callers cancel the context first so loops observe the shutdown.
func (s *Supervisor) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.pool.StopAndWait()
	s.logger.Info("Supervisor stopped")
}

// Statuses returns a snapshot of every loop's state, ordered as the loops
// were registered.
func (s *Supervisor) Statuses() []LoopStatus {
	out := make([]LoopStatus, 0, len(s.loops))
	for _, loop := range s.loops {
		if st, ok := s.states.Load(loop.Name); ok {
			out = append(out, st)
		}
	}
	return out
}

func (s *Supervisor) runLoop(ctx context.Context, loop Loop) {
	if st, ok := s.states.Load(loop.Name); ok {
		st.State = LoopStateRunning
		s.states.Store(loop.Name, st)
	}
	s.pipeline.RunLoop(ctx, loop, func(stats PassStats, err error) {
		st, ok := s.states.Load(loop.Name)
		if !ok {
			return
		}
		st.State = LoopStateSleeping
		st.LastPass = time.Now().UTC()
		if err != nil {
			st.Errors++
			st.LastError = err.Error()
		} else {
			st.Passes++
			st.LastError = ""
		}
		s.states.Store(loop.Name, st)
	})
}

func (s *Supervisor) runDiscovery(ctx context.Context) {
	stats, err := s.pipeline.RunTokenDiscovery(ctx)
	if err != nil {
		s.logger.Error("Token discovery failed", zap.Error(err))
	} else {
		s.logger.Info("Token discovery completed",
			zap.Int("listed", stats.Listed),
			zap.Int("selected", stats.Selected),
			zap.Int("created", stats.Created),
			zap.Int("rank_updates", stats.RankUpdate))
	}

	updated, err := s.pipeline.RunCategoryDiscovery(ctx)
	if err != nil {
		s.logger.Error("Category discovery failed", zap.Error(err))
		return
	}
	s.logger.Info("Category discovery completed", zap.Int("updated", updated))
}
