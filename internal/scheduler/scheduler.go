// Package scheduler owns the cron entries that fire client prompts.
//
// Every client has at most one standup job and one feedback job, keyed by
// "standup_{workspace}_{client}" and "feedback_{workspace}_{client}". Adding a
// job with an existing id replaces it. Firings run on a bounded pool: a run
// that cannot get a slot within MisfireGrace is dropped, and a job never has
// more than MaxInstances runs in flight. Missed runs are never replayed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/repo"
)

// Job kinds.
const (
	KindStandup  = "standup"
	KindFeedback = "feedback"
	KindSystem   = "system"
)

// Run outcomes recorded in vibecheck_scheduler_runs_total.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomePanic        = "panic"
	OutcomeMisfire      = "misfire"
	OutcomeMaxInstances = "max_instances"
)

var tracer = otel.Tracer("github.com/tbourn/vibe-check/internal/scheduler")

// ErrInvalidSchedule is returned for configs that cannot be turned into a
// cron spec.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Dispatcher sends the prompt a job fires for.
type Dispatcher interface {
	SendStandup(ctx context.Context, workspaceID, clientID uint) error
	SendFeedback(ctx context.Context, workspaceID, clientID uint) error
}

// Options tune the scheduler. Zero values take the defaults.
type Options struct {
	Location     *time.Location // default UTC
	PoolSize     int            // default 20
	MaxInstances int            // default 3
	MisfireGrace time.Duration  // default 15m
	JobTimeout   time.Duration  // default 2m
	Logger       zerolog.Logger
}

func (o *Options) defaults() {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 20
	}
	if o.MaxInstances <= 0 {
		o.MaxInstances = 3
	}
	if o.MisfireGrace <= 0 {
		o.MisfireGrace = 15 * time.Minute
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 2 * time.Minute
	}
}

// Job describes a scheduled entry.
type Job struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Spec        string    `json:"spec"`
	WorkspaceID uint      `json:"workspace_id,omitempty"`
	ClientID    uint      `json:"client_id,omitempty"`
	NextRun     time.Time `json:"next_run"`
}

type entry struct {
	id       cron.EntryID
	job      Job
	schedule cron.Schedule
	running  atomic.Int32
}

// Scheduler wraps a robfig/cron instance with per-client job bookkeeping.
type Scheduler struct {
	cron     *cron.Cron
	parser   cron.Parser
	dispatch Dispatcher
	opts     Options
	log      zerolog.Logger
	sem      chan struct{}

	mu      sync.Mutex
	entries map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

// New builds a stopped scheduler. Call Start to begin firing.
func New(d Dispatcher, opts Options) *Scheduler {
	opts.defaults()
	lg := opts.Logger.With().Str("component", "scheduler").Logger()
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{lg}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(opts.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		parser:   parser,
		dispatch: d,
		opts:     opts,
		log:      lg,
		sem:      make(chan struct{}, opts.PoolSize),
		entries:  make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", s.count()).Msg("scheduler started")
}

// Stop halts new firings and waits for running jobs until ctx is done.
// Jobs still running afterwards have their context cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out; cancelling running jobs")
		return ctx.Err()
	}
}

// StandupJobID returns the job id of a client's standup prompt.
func StandupJobID(workspaceID, clientID uint) string {
	return fmt.Sprintf("standup_%d_%d", workspaceID, clientID)
}

// FeedbackJobID returns the job id of a client's feedback prompt.
func FeedbackJobID(workspaceID, clientID uint) string {
	return fmt.Sprintf("feedback_%d_%d", workspaceID, clientID)
}

// StandupSpec builds the cron spec for a standup config in tz.
func StandupSpec(scheduleType, hhmm, tz string) (string, error) {
	var dow string
	switch scheduleType {
	case domain.ScheduleDaily:
		dow = "*"
	case domain.ScheduleMondayOnly:
		dow = "1"
	default:
		return "", fmt.Errorf("%w: %w", ErrInvalidSchedule, domain.ErrInvalidScheduleType)
	}
	return clockSpec(hhmm, tz, dow)
}

// FeedbackSpec builds the Friday cron spec for a feedback config in tz.
func FeedbackSpec(hhmm, tz string) (string, error) {
	return clockSpec(hhmm, tz, "5")
}

func clockSpec(hhmm, tz, dow string) (string, error) {
	h, m, err := domain.ParseClock(hhmm)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	if _, err := domain.LoadTimezone(tz); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * %s", tz, m, h, dow), nil
}

// AddStandupJob schedules (or reschedules) the standup prompt of c.
func (s *Scheduler) AddStandupJob(c domain.Client, cfg domain.StandupConfig) error {
	spec, err := StandupSpec(cfg.ScheduleType, cfg.ScheduleTime, c.Timezone)
	if err != nil {
		return err
	}
	job := Job{
		ID:          StandupJobID(c.WorkspaceID, c.ID),
		Name:        "Standup: " + c.Name(),
		Kind:        KindStandup,
		Spec:        spec,
		WorkspaceID: c.WorkspaceID,
		ClientID:    c.ID,
	}
	ws, id := c.WorkspaceID, c.ID
	return s.add(job, func(ctx context.Context) error { return s.dispatch.SendStandup(ctx, ws, id) })
}

// AddFeedbackJob schedules (or reschedules) the Friday feedback prompt of c.
func (s *Scheduler) AddFeedbackJob(c domain.Client, cfg domain.FeedbackConfig) error {
	at := cfg.ScheduleTime
	if at == "" {
		at = domain.DefaultFeedbackTime
	}
	spec, err := FeedbackSpec(at, c.Timezone)
	if err != nil {
		return err
	}
	job := Job{
		ID:          FeedbackJobID(c.WorkspaceID, c.ID),
		Name:        "Feedback: " + c.Name(),
		Kind:        KindFeedback,
		Spec:        spec,
		WorkspaceID: c.WorkspaceID,
		ClientID:    c.ID,
	}
	ws, id := c.WorkspaceID, c.ID
	return s.add(job, func(ctx context.Context) error { return s.dispatch.SendFeedback(ctx, ws, id) })
}

// AddSystemJob registers a housekeeping job such as the retention purge.
func (s *Scheduler) AddSystemJob(id, spec string, fn func(ctx context.Context) error) error {
	return s.add(Job{ID: id, Name: id, Kind: KindSystem, Spec: spec}, fn)
}

// RemoveStandupJob drops a client's standup job, if any.
func (s *Scheduler) RemoveStandupJob(workspaceID, clientID uint) bool {
	return s.Remove(StandupJobID(workspaceID, clientID))
}

// RemoveFeedbackJob drops a client's feedback job, if any.
func (s *Scheduler) RemoveFeedbackJob(workspaceID, clientID uint) bool {
	return s.Remove(FeedbackJobID(workspaceID, clientID))
}

// Remove drops the job with id and reports whether it existed.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.entries, id)
	jobsGauge.WithLabelValues(e.job.Kind).Dec()
	s.log.Debug().Str("job_id", id).Msg("job removed")
	return true
}

func (s *Scheduler) add(job Job, fn func(ctx context.Context) error) error {
	sched, err := s.parser.Parse(job.Spec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[job.ID]; ok {
		s.cron.Remove(old.id)
		delete(s.entries, job.ID)
		jobsGauge.WithLabelValues(old.job.Kind).Dec()
	}
	e := &entry{job: job, schedule: sched}
	e.id = s.cron.Schedule(sched, cron.FuncJob(s.wrap(e, fn)))
	s.entries[job.ID] = e
	jobsGauge.WithLabelValues(job.Kind).Inc()

	s.log.Info().
		Str("job_id", job.ID).
		Str("spec", job.Spec).
		Time("next_run", sched.Next(s.now())).
		Msg("job scheduled")
	return nil
}

// wrap applies the instance limit, the pool and the misfire grace to fn.
func (s *Scheduler) wrap(e *entry, fn func(ctx context.Context) error) func() {
	return func() {
		fired := s.now()
		kind := e.job.Kind
		lg := s.log.With().Str("job_id", e.job.ID).Logger()

		if n := e.running.Add(1); int(n) > s.opts.MaxInstances {
			e.running.Add(-1)
			runsTotal.WithLabelValues(kind, OutcomeMaxInstances).Inc()
			lg.Warn().Int("max_instances", s.opts.MaxInstances).Msg("run skipped: too many instances")
			return
		}
		defer e.running.Add(-1)

		grace := time.NewTimer(s.opts.MisfireGrace)
		defer grace.Stop()
		select {
		case s.sem <- struct{}{}:
		case <-grace.C:
			runsTotal.WithLabelValues(kind, OutcomeMisfire).Inc()
			lg.Warn().Time("fired_at", fired).Dur("grace", s.opts.MisfireGrace).Msg("run skipped: misfire grace exceeded")
			return
		case <-s.ctx.Done():
			return
		}
		defer func() { <-s.sem }()

		defer func() {
			if r := recover(); r != nil {
				runsTotal.WithLabelValues(kind, OutcomePanic).Inc()
				lg.Error().Interface("panic", r).Msg("job panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(s.ctx, s.opts.JobTimeout)
		defer cancel()
		ctx, span := tracer.Start(ctx, "scheduler."+kind,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("job.id", e.job.ID),
				attribute.Int64("client.id", int64(e.job.ClientID)),
			),
		)
		defer span.End()
		start := s.now()
		if err := fn(lg.WithContext(ctx)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "job failed")
			runsTotal.WithLabelValues(kind, OutcomeError).Inc()
			lg.Error().Err(err).Msg("job failed")
			return
		}
		runsTotal.WithLabelValues(kind, OutcomeOK).Inc()
		lg.Debug().Dur("took", s.now().Sub(start)).Msg("job ran")
	}
}

// Jobs lists scheduled jobs sorted by id, with their next fire time.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]Job, 0, len(s.entries))
	for _, e := range s.entries {
		j := e.job
		j.NextRun = e.schedule.Next(now)
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Get returns the job with id.
func (s *Scheduler) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Job{}, false
	}
	j := e.job
	j.NextRun = e.schedule.Next(s.now())
	return j, true
}

// nextRun returns the first fire time of job id strictly after t.
func (s *Scheduler) nextRun(id string, after time.Time) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.schedule.Next(after), true
}

func (s *Scheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sync schedules every active config found in the database: non-paused
// standups and enabled feedback of active clients. Clients of uninstalled
// workspaces keep their jobs; dispatch skips them until a reinstall.
// A config that cannot be scheduled is logged and skipped.
func (s *Scheduler) Sync(ctx context.Context, db *gorm.DB) (int, error) {
	clients, err := repo.ListSchedulableClients(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("load schedulable clients: %w", err)
	}
	n := 0
	for _, c := range clients {
		if cfg := c.StandupConfig; cfg != nil && !cfg.IsPaused {
			if err := s.AddStandupJob(c, *cfg); err != nil {
				s.log.Warn().Err(err).Uint("client_id", c.ID).Msg("skip standup job")
			} else {
				n++
			}
		}
		if cfg := c.FeedbackConfig; cfg != nil && cfg.IsEnabled {
			if err := s.AddFeedbackJob(c, *cfg); err != nil {
				s.log.Warn().Err(err).Uint("client_id", c.ID).Msg("skip feedback job")
			} else {
				n++
			}
		}
	}
	s.log.Info().Int("clients", len(clients)).Int("jobs", n).Msg("schedules loaded")
	return n, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ lg zerolog.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.lg.Debug().Fields(kv).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.lg.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}
