package consolidate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	klog "github.com/Klingon-tech/klingnet-consolidator/internal/log"
	"github.com/Klingon-tech/klingnet-consolidator/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrSchedulerStopped is returned by Start after Stop.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// SchedulerConfig controls the recurring consolidate-below job.
type SchedulerConfig struct {
	Interval      time.Duration   // Time between fee evaluations.
	FeeMultiplier decimal.Decimal // Applied to the estimate when the job fires.
	Persist       bool            // Save the job so a restart resumes it.
	PollStep      time.Duration   // Sleep between cancel checks.
	CallTimeout   time.Duration   // Bound on one evaluation (0 = none).
	Policy        Policy
}

// DefaultSchedulerConfig returns the stock scheduler settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:      DefaultInterval,
		FeeMultiplier: decimal.RequireFromString(DefaultFeeMultiText),
		PollStep:      DefaultPollStep,
		CallTimeout:   DefaultCallTimeout,
		Policy:        DefaultPolicy(),
	}
}

// Validate rejects configurations that must keep the facility disabled.
func (c SchedulerConfig) Validate() error {
	if c.Interval < time.Second {
		return fmt.Errorf("consolidator-interval must be at least 1 second")
	}
	if c.FeeMultiplier.LessThan(MinFeeMultiplier) || c.FeeMultiplier.GreaterThan(MaxFeeMultiplier) {
		return fmt.Errorf("consolidator-feemulti outside of allowed range [0.3,3.0]")
	}
	if c.PollStep <= 0 {
		return fmt.Errorf("poll step must be positive")
	}
	return c.Policy.Validate()
}

// Status is a snapshot of the recurring job.
type Status struct {
	Running        bool       `json:"running"`
	Job            *Args      `json:"job,omitempty"`
	Evaluations    uint64     `json:"evaluations"`
	LastEstimate   FeeRate    `json:"last_estimate,omitempty"`
	LastEvaluation *time.Time `json:"last_evaluation,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// Scheduler owns the single recurring consolidate-below job.
//
// At most one poll loop exists per Scheduler. The running flag is only
// touched under mu, and mu is never held across I/O. The cancel signal is a
// broadcast value: every loop reads the latest value and each new loop
// starts with it cleared.
type Scheduler struct {
	cfg    SchedulerConfig
	oracle FeeOracle
	exec   Consolidator
	store  JobStore // nil = no persistence backend
	clock  Clock
	logger zerolog.Logger

	ctx  context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	running bool
	stopped bool
	done    chan struct{}
	status  Status

	cancel atomic.Bool
}

// NewScheduler creates a scheduler. store may be nil when persistence is
// not wanted; clock may be nil for the real clock.
func NewScheduler(cfg SchedulerConfig, oracle FeeOracle, exec Consolidator, store JobStore, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:    cfg,
		oracle: oracle,
		exec:   exec,
		store:  store,
		clock:  clock,
		logger: klog.Consolidate,
		ctx:    ctx,
		stop:   stop,
	}
}

// Start launches the recurring job and returns once it is accepted.
// It fails with ErrAlreadyRunning while another job is active, without
// touching that job.
func (s *Scheduler) Start(args Args) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.cancel.Store(false)
	done := make(chan struct{})
	s.done = done
	job := args
	s.status = Status{Running: true, Job: &job}
	s.mu.Unlock()
	metrics.JobRunning.Set(1)

	if s.cfg.Persist && s.store != nil {
		if err := s.store.Save(args); err != nil {
			s.release(done)
			return fmt.Errorf("persist consolidate job: %w", err)
		}
	}

	go s.run(args, done)
	return nil
}

// Cancel asks the running job to stop at its next wake. It reports whether
// a job was running; cancelling with nothing running is not an error.
func (s *Scheduler) Cancel() bool {
	s.cancel.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Running reports whether a job is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the current (or last) job.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Running = s.running
	return st
}

// Wait blocks until the current job, if any, has terminated.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Recover restarts a job left in the store by a previous process. A missing
// or unreadable job is logged and treated as nothing to recover.
func (s *Scheduler) Recover() error {
	if !s.cfg.Persist || s.store == nil {
		return nil
	}
	args, err := s.store.Load()
	if err != nil {
		s.logger.Info().Err(err).Msgf("Loading persisted consolidate command: %v", err)
		return nil
	}
	if err := s.Start(args); err != nil {
		s.logger.Error().Err(err).Str("job", args.String()).Msg("Could not start saved consolidate-below command")
		return err
	}
	s.logger.Info().Str("job", args.String()).
		Msgf("Successfully started saved consolidate-below command with: %s", args)
	return nil
}

// Stop ends the running job for process shutdown and waits for it. The
// persisted job is kept so the next process recovers it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.stop()
	s.Wait()
}

func (s *Scheduler) run(args Args, done chan struct{}) {
	logger := s.logger.With().Str("job", args.String()).Logger()
	logger.Info().Dur("interval", s.cfg.Interval).Msg("consolidate_below started")

	var last time.Time
	first := true
	for {
		if s.cancel.Load() {
			logger.Info().Msg("consolidate_below CANCELED")
			s.finish(done, true)
			return
		}
		if s.ctx.Err() != nil {
			logger.Info().Msg("consolidate_below interrupted by shutdown")
			s.finish(done, false)
			return
		}
		if !first && s.clock.Now().Sub(last) < s.cfg.Interval {
			_ = s.clock.Sleep(s.ctx, s.cfg.PollStep)
			continue
		}
		last = s.clock.Now()
		first = false

		if s.evaluate(s.ctx, args) {
			s.finish(done, true)
			return
		}
	}
}

// evaluate samples the oracle once and fires the executor if the estimate
// is below the job's target. It returns true when the job is complete.
// Every error is logged and left for the next interval.
func (s *Scheduler) evaluate(ctx context.Context, args Args) bool {
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}
	s.noteEvaluation()

	est, err := s.oracle.Estimates(ctx)
	if err != nil {
		s.logger.Info().Err(err).Msg("consolidate_below: Could not get feerates")
		s.noteError(err, metrics.OutcomeError)
		return false
	}
	target, minCount, err := args.Resolve(est, s.cfg.Policy)
	if err != nil {
		s.logger.Info().Msgf("consolidate_below: %v", err)
		s.noteError(err, metrics.OutcomeError)
		return false
	}
	current, err := est.ForBlockCount(s.cfg.Policy.BlockCount)
	if err != nil {
		s.logger.Info().Msgf("consolidate_below: %v", err)
		s.noteError(err, metrics.OutcomeError)
		return false
	}
	s.noteEstimate(current)

	if current >= target {
		s.logger.Info().
			Msgf("Feerate not low enough yet: Current:%dperkb Wanted:<%dperkb", current, target)
		metrics.Evaluations.WithLabelValues(metrics.OutcomeWaiting).Inc()
		return false
	}

	adjusted := AdjustFeeRate(current, s.cfg.FeeMultiplier)
	receipt, err := s.exec.Execute(ctx, NewArgs(adjusted, minCount))
	if err != nil {
		s.logger.Info().Msgf("consolidate_below: %v", err)
		s.noteError(err, metrics.OutcomeFailed)
		return false
	}

	metrics.Evaluations.WithLabelValues(metrics.OutcomeTriggered).Inc()
	s.logger.Info().
		Int("coins", receipt.Count).
		Str("txid", receipt.TxID).
		Uint32("feerate", uint32(adjusted)).
		Msgf("consolidate_below: SUCCESS: %d coins in %s", receipt.Count, receipt.TxID)
	return true
}

// finish terminates a loop. The persisted job is deleted before the running
// flag drops, so it can never remove a job saved by a later Start.
func (s *Scheduler) finish(done chan struct{}, deleteJob bool) {
	if deleteJob && s.store != nil {
		if err := s.store.Delete(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to delete persisted consolidate job")
		}
	}
	s.release(done)
}

func (s *Scheduler) release(done chan struct{}) {
	s.mu.Lock()
	s.running = false
	if s.done == done {
		s.done = nil
	}
	s.mu.Unlock()
	metrics.JobRunning.Set(0)
	close(done)
}

func (s *Scheduler) noteEvaluation() {
	now := s.clock.Now()
	s.mu.Lock()
	s.status.Evaluations++
	s.status.LastEvaluation = &now
	s.mu.Unlock()
}

func (s *Scheduler) noteEstimate(rate FeeRate) {
	metrics.FeeEstimate.Set(float64(rate))
	s.mu.Lock()
	s.status.LastEstimate = rate
	s.status.LastError = ""
	s.mu.Unlock()
}

func (s *Scheduler) noteError(err error, outcome string) {
	metrics.Evaluations.WithLabelValues(outcome).Inc()
	s.mu.Lock()
	s.status.LastError = err.Error()
	s.mu.Unlock()
}
