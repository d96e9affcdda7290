package collector

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/paaavkata/crypto-dashboard/pkg/models"
)

type CycleFetcher interface {
	FetchCycle(ctx context.Context, now time.Time) (*models.ViewState, error)
}

type CycleObserver interface {
	ObserveCycle(duration time.Duration, err error)
}

// every fires exactly interval after the previous activation, unlike
// cron.Every which rounds to whole seconds.
type every time.Duration

func (e every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

type Scheduler struct {
	fetcher  CycleFetcher
	store    *Store
	cron     *cron.Cron
	chain    cron.Chain
	observer CycleObserver
	logger   *logrus.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	running sync.WaitGroup
}

// NewScheduler builds the polling driver. With skipOverlapping set, a tick
// that arrives while a cycle is still running is dropped; otherwise cycles
// may overlap and their requests interleave in the queue.
func NewScheduler(fetcher CycleFetcher, store *Store, interval time.Duration, skipOverlapping bool, logger *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	wrappers := []cron.JobWrapper{cron.Recover(cronLogger)}
	if skipOverlapping {
		wrappers = append(wrappers, cron.SkipIfStillRunning(cronLogger))
	}

	return &Scheduler{
		fetcher:  fetcher,
		store:    store,
		cron:     cron.New(cron.WithSeconds(), cron.WithLogger(cronLogger)),
		chain:    cron.NewChain(wrappers...),
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// WithObserver attaches o and returns s. Call before Start.
func (s *Scheduler) WithObserver(o CycleObserver) *Scheduler {
	s.observer = o
	return s
}

// Start runs one cycle immediately and then one per interval until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.WithField("interval", s.interval).Info("Starting dashboard poll scheduler")

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	job := s.chain.Then(cron.FuncJob(s.runCycle))
	s.cron.Schedule(every(s.interval), job)
	s.cron.Start()

	// Run initial poll
	go job.Run()

	s.logger.Info("Dashboard poll scheduler started successfully")
	return nil
}

// Stop cancels the timer and any cycle still waiting on the queue. No cycle
// runs once Stop returns.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping dashboard poll scheduler")

	s.mu.Lock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.running.Wait()
}

func (s *Scheduler) runCycle() {
	s.mu.Lock()
	if s.stopped || s.ctx == nil {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	start := time.Now()
	s.logger.Debug("Starting poll cycle")

	state, err := s.fetcher.FetchCycle(ctx, s.now())
	duration := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveCycle(duration, err)
	}
	if err != nil {
		s.logger.WithError(err).Error("Poll cycle failed, keeping previous view state")
		return
	}

	s.store.Replace(state)

	s.logger.WithFields(logrus.Fields{
		"duration_ms": duration.Milliseconds(),
		"symbols":     len(state.Graphs),
	}).Info("Poll cycle completed successfully")
}
