package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Job names the two scheduled activities.
type Job string

const (
	JobSweep  Job = "sweep"
	JobReport Job = "report"
)

// JobFunc runs one scheduled activity. The context carries the job deadline.
type JobFunc func(ctx context.Context)

// Scheduler drives both jobs from a single loop: sweeps on a fixed interval
// and the report at a daily wall-clock time in a configured timezone. Manual
// fires bypass the cadence but run the same job funcs.
type Scheduler struct {
	interval time.Duration
	reportAt string
	loc      *time.Location
	jobs     map[Job]JobFunc
	logger   *slog.Logger
	now      func() time.Time

	fire chan Job

	mu         sync.Mutex
	nextSweep  time.Time
	nextReport time.Time
}

// New builds the scheduler. reportAt is "HH:MM" in loc.
func New(interval time.Duration, reportAt string, loc *time.Location, sweep, report JobFunc, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		interval: interval,
		reportAt: reportAt,
		loc:      loc,
		jobs:     map[Job]JobFunc{JobSweep: sweep, JobReport: report},
		logger:   logger,
		now:      time.Now,
		fire:     make(chan Job, 4),
	}
}

// Run blocks until ctx is cancelled. The first sweep fires immediately so a
// restart does not wait a full interval to catch up.
func (s *Scheduler) Run(ctx context.Context) {
	now := s.now()
	s.setNext(JobSweep, now)
	s.setNext(JobReport, nextDaily(now, s.reportAt, s.loc))

	for {
		now = s.now()
		sweepTimer := time.NewTimer(s.untilNext(JobSweep, now))
		reportTimer := time.NewTimer(s.untilNext(JobReport, now))

		select {
		case <-ctx.Done():
			sweepTimer.Stop()
			reportTimer.Stop()
			return
		case <-sweepTimer.C:
			reportTimer.Stop()
			s.runJob(ctx, JobSweep)
			s.setNext(JobSweep, s.now().Add(s.interval))
		case <-reportTimer.C:
			sweepTimer.Stop()
			s.runJob(ctx, JobReport)
			s.setNext(JobReport, nextDaily(s.now(), s.reportAt, s.loc))
		case job := <-s.fire:
			sweepTimer.Stop()
			reportTimer.Stop()
			s.runJob(ctx, job)
			// Manual fires do not move the schedule.
		}
	}
}

// FireNow queues an out-of-cadence run of the given job.
func (s *Scheduler) FireNow(job Job) {
	select {
	case s.fire <- job:
	default:
		if s.logger != nil {
			s.logger.Warn("manual fire dropped, queue full", "job", string(job))
		}
	}
}

// TimeUntilNext reports how long until the job's next scheduled run.
func (s *Scheduler) TimeUntilNext(job Job) time.Duration {
	d := s.untilNext(job, s.now())
	if d < 0 {
		return 0
	}
	return d
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	fn, ok := s.jobs[job]
	if !ok || fn == nil {
		return
	}
	started := s.now()
	if s.logger != nil {
		s.logger.Info("job started", "job", string(job))
	}
	fn(ctx)
	if s.logger != nil {
		s.logger.Info("job finished", "job", string(job), "took", s.now().Sub(started).Round(time.Millisecond))
	}
}

func (s *Scheduler) setNext(job Job, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch job {
	case JobSweep:
		s.nextSweep = at
	case JobReport:
		s.nextReport = at
	}
}

func (s *Scheduler) untilNext(job Job, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch job {
	case JobSweep:
		return s.nextSweep.Sub(now)
	case JobReport:
		return s.nextReport.Sub(now)
	}
	return time.Hour
}

// nextDaily returns the next occurrence of "HH:MM" in loc strictly after now.
func nextDaily(now time.Time, at string, loc *time.Location) time.Time {
	hour, minute, err := parseClock(at)
	if err != nil {
		hour, minute = 18, 0
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func parseClock(at string) (hour, minute int, err error) {
	parts := strings.SplitN(at, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad clock time %q", at)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", at)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", at)
	}
	return hour, minute, nil
}
