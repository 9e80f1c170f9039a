// Package scheduler runs the daily background jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"solana-airdrop/internal/observability"
)

// Job names.
const (
	JobExport      = "export"
	JobEligibility = "eligibility"
)

var (
	// ErrAlreadyRunning is returned when a job is triggered while a previous
	// run of it is still in progress in this process.
	ErrAlreadyRunning = errors.New("job already running")
	// ErrLocked is returned when another replica holds the job lock.
	ErrLocked = errors.New("job locked by another instance")
	// ErrUnknownJob is returned by RunNow for an unregistered name.
	ErrUnknownJob = errors.New("unknown job")
)

// JobFunc is the body of a job.
type JobFunc func(ctx context.Context) error

// Options configures a Scheduler.
type Options struct {
	Location *time.Location
	// Locker makes jobs exclusive across replicas. Nil means process-local only.
	Locker  Locker
	LockTTL time.Duration
	Logger  logrus.FieldLogger
}

type job struct {
	name    string
	spec    string
	fn      JobFunc
	running bool
	lastRun time.Time
	lastErr error
}

// Scheduler triggers registered jobs on cron expressions.
// Jobs are independent: each runs in its own goroutine and a failure
// in one never affects another.
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	logger  logrus.FieldLogger

	mu   sync.Mutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. Call Add for each job, then Start.
func New(opts Options) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		locker:  opts.Locker,
		lockTTL: ttl,
		logger:  logger,
		jobs:    make(map[string]*job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under name on a standard 5-field cron spec.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	if _, err := s.cron.AddFunc(spec, func() {
		_ = s.run(s.ctx, name)
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.jobs[name] = &job{name: name, spec: spec, fn: fn}
	return nil
}

// Start begins firing jobs. It does not block.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.WithField("next", e.Next.Format(time.RFC3339)).Debug("job scheduled")
	}
}

// Stop stops firing new runs, cancels running jobs and waits for them
// to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs name synchronously with the same guards as a scheduled run.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	return s.run(ctx, name)
}

// JobStatus describes the last run of a job.
type JobStatus struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	Running bool      `json:"running"`
	LastRun time.Time `json:"lastRun,omitempty"`
	LastErr string    `json:"lastError,omitempty"`
}

// Status returns every job's state ordered by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{Name: j.name, Spec: j.spec, Running: j.running, LastRun: j.lastRun}
		if j.lastErr != nil {
			st.LastErr = j.lastErr.Error()
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (s *Scheduler) run(ctx context.Context, name string) (err error) {
	log := s.logger.WithField("job", name)

	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if j.running {
		s.mu.Unlock()
		log.Warn("job already running, skipping")
		observability.RecordJobRun(name, "skipped", 0, 0)
		return ErrAlreadyRunning
	}
	j.running = true
	s.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}

		s.mu.Lock()
		j.running = false
		if !errors.Is(err, ErrLocked) {
			j.lastRun = start
			j.lastErr = err
		}
		s.mu.Unlock()

		finished := time.Now()
		status := "success"
		switch {
		case errors.Is(err, ErrLocked):
			status = "skipped"
		case err != nil:
			status = "failure"
			log.WithError(err).Error("job failed")
		default:
			log.WithField("duration", finished.Sub(start).String()).Info("job finished")
		}
		observability.RecordJobRun(name, status, finished.Sub(start).Seconds(), finished.Unix())
	}()

	if s.locker != nil {
		release, acquired, lockErr := s.locker.TryLock(ctx, "job:"+name, s.lockTTL)
		if lockErr != nil {
			return fmt.Errorf("acquire lock: %w", lockErr)
		}
		if !acquired {
			log.Info("job locked by another instance, skipping")
			return ErrLocked
		}
		defer func() {
			// ctx may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if relErr := release(releaseCtx); relErr != nil {
				log.WithError(relErr).Warn("failed to release job lock")
			}
		}()
	}

	log.Info("job started")
	return j.fn(ctx)
}
