package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cuemby/confsync/pkg/log"
	"github.com/cuemby/confsync/pkg/metrics"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/rs/zerolog"
)

// ErrAlreadyStarted is returned by Start on a running scheduler
var ErrAlreadyStarted = errors.New("scheduler already started")

// Trigger sources
const (
	sourceStart    = "start"
	sourcePeriodic = "periodic"
	sourceManual   = "manual"
)

// Runner performs one sync session
type Runner interface {
	Run(ctx context.Context, download bool) types.SyncOutcome
}

// Scheduler runs sync sessions periodically with exponential backoff and on
// demand. All sessions run on one goroutine, so at most one is in flight.
type Scheduler struct {
	runner   Runner
	clock    Clock
	backoff  *Backoff
	download bool
	logger   zerolog.Logger

	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	cancel    context.CancelFunc

	mu          sync.Mutex
	state       types.SchedulerState
	started     bool
	interval    time.Duration
	sessions    int
	lastRun     time.Time
	lastOutcome *types.SyncOutcome
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithBounds sets the backoff bounds
func WithBounds(min, max time.Duration) Option {
	return func(s *Scheduler) { s.backoff = NewBackoff(min, max) }
}

// WithDownload controls whether sessions fetch the remote snapshot
func WithDownload(download bool) Option {
	return func(s *Scheduler) { s.download = download }
}

// WithLogger replaces the scheduler logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a scheduler for runner
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:    runner,
		clock:     realClock{},
		backoff:   NewBackoff(DefaultMinInterval, DefaultMaxInterval),
		download:  true,
		logger:    log.WithComponent("scheduler"),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		state:     types.SchedulerIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.interval = s.backoff.Current()
	return s
}

// Start runs one session immediately and then keeps syncing until ctx is
// cancelled or Stop is called
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if s.state == types.SchedulerStopped {
		s.mu.Unlock()
		return errors.New("scheduler stopped")
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	metrics.RegisterComponent(metrics.ComponentScheduler, true, "")
	go s.loop(ctx)
	return nil
}

// Stop ends the loop and waits for an in-flight session to return
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started := s.started
		s.state = types.SchedulerStopped
		cancel := s.cancel
		s.mu.Unlock()

		close(s.stopCh)
		if cancel != nil {
			cancel()
		}
		if started {
			<-s.doneCh
		}
		metrics.UpdateComponent(metrics.ComponentScheduler, false, "stopped")
	})
}

// TriggerNow queues a manual session. It returns false when a manual
// session is already queued, in which case the trigger is merged into it,
// or when the scheduler is stopped. The periodic timer is left as is.
func (s *Scheduler) TriggerNow() bool {
	s.mu.Lock()
	stopped := s.state == types.SchedulerStopped
	s.mu.Unlock()

	if stopped {
		metrics.SyncTriggersTotal.WithLabelValues(sourceManual, "rejected").Inc()
		return false
	}

	select {
	case s.triggerCh <- struct{}{}:
		metrics.SyncTriggersTotal.WithLabelValues(sourceManual, "queued").Inc()
		return true
	default:
		metrics.SyncTriggersTotal.WithLabelValues(sourceManual, "collapsed").Inc()
		return false
	}
}

// Status returns a snapshot of the scheduler state
func (s *Scheduler) Status() types.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := types.SchedulerStatus{
		State:           s.state,
		IntervalSeconds: int(s.interval / time.Second),
		TriggerPending:  len(s.triggerCh) > 0,
		Sessions:        s.sessions,
		LastRun:         s.lastRun,
	}
	if s.lastOutcome != nil {
		outcome := *s.lastOutcome
		status.LastOutcome = &outcome
	}
	return status
}

// IntervalSeconds returns the current periodic interval in whole seconds
func (s *Scheduler) IntervalSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.interval / time.Second)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	if outcome, ok := s.runOnce(ctx, sourceStart); ok {
		s.setInterval(s.backoff.Next(outcome.Changed))
	}
	timer := s.clock.NewTimer(s.backoff.Current())

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			s.markStopped()
			return

		case <-s.stopCh:
			timer.Stop()
			return

		case <-timer.C():
			if outcome, ok := s.runOnce(ctx, sourcePeriodic); ok {
				s.setInterval(s.backoff.Next(outcome.Changed))
			}
			timer = s.clock.NewTimer(s.backoff.Current())

		case <-s.triggerCh:
			if _, ok := s.runOnce(ctx, sourceManual); ok {
				s.setInterval(s.backoff.Reset())
			}
		}
	}
}

// runOnce runs a single session. It refuses to start while another session
// is running or after Stop.
func (s *Scheduler) runOnce(ctx context.Context, source string) (types.SyncOutcome, bool) {
	s.mu.Lock()
	if s.state != types.SchedulerIdle {
		s.mu.Unlock()
		return types.SyncOutcome{}, false
	}
	s.state = types.SchedulerRunning
	s.mu.Unlock()

	s.logger.Debug().Str("source", source).Msg("Starting sync session")
	outcome := s.runner.Run(ctx, s.download)

	s.mu.Lock()
	if s.state == types.SchedulerRunning {
		s.state = types.SchedulerIdle
	}
	s.sessions++
	s.lastRun = s.clock.Now()
	s.lastOutcome = &outcome
	s.mu.Unlock()

	result := "unchanged"
	if outcome.Changed {
		result = "changed"
	}
	metrics.SyncTriggersTotal.WithLabelValues(source, result).Inc()

	return outcome, true
}

func (s *Scheduler) setInterval(d time.Duration) {
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()

	metrics.BackoffInterval.Set(d.Seconds())
	s.logger.Debug().Dur("interval", d).Msg("Next periodic sync scheduled")
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	s.state = types.SchedulerStopped
	s.mu.Unlock()
}
