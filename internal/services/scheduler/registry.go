// Package scheduler owns the in-memory map from schedule identity to a live
// timer. The map is a derived cache: the job store stays the single source
// of truth and the registry is fully rebuilt from it via ReconcileAll at
// process start.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"content-panel/internal/models"
	"content-panel/internal/store"
)

// Runner is what a firing timer invokes; the pipeline implements it. An
// interface keeps the registry testable without generation collaborators.
type Runner interface {
	Run(ctx context.Context, sched *models.AutomationSchedule) (*models.AutomationExecution, error)
}

type Registry struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[uint]cron.EntryID // recurring schedules
	timers  map[uint]*time.Timer  // one-shot schedules

	store  *store.Store
	runner Runner
	log    zerolog.Logger

	baseCtx context.Context
}

func NewRegistry(st *store.Store, runner Runner, log zerolog.Logger) *Registry {
	return &Registry{
		cron:    cron.New(),
		entries: make(map[uint]cron.EntryID),
		timers:  make(map[uint]*time.Timer),
		store:   st,
		runner:  runner,
		log:     log.With().Str("component", "scheduler").Logger(),
		baseCtx: context.Background(),
	}
}

// Start begins firing timers. ctx is the process root context; timer
// callbacks run under it so shutdown cancels in-flight collaborator calls.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	r.baseCtx = ctx
	r.mu.Unlock()
	r.cron.Start()
	r.log.Info().Msg("schedule registry started")
}

// Stop halts the cron runner and stops all one-shot timers. Executions
// already in progress run to completion.
func (r *Registry) Stop() {
	r.mu.Lock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.mu.Unlock()
	<-r.cron.Stop().Done()
	r.log.Info().Msg("schedule registry stopped")
}

// Register puts a live timer behind the schedule. Re-registering an
// already-registered schedule replaces its timer, so Register doubles as
// the update path and reconciliation stays idempotent.
func (r *Registry) Register(sched *models.AutomationSchedule) error {
	if err := Validate(sched); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(sched.ID)

	id := sched.ID
	if sched.Kind == models.ScheduleKindOnce {
		delay := time.Until(*sched.RunAt)
		if delay < 0 {
			delay = 0 // past-due one-shots fire immediately
		}
		r.timers[id] = time.AfterFunc(delay, func() { r.fire(id) })
		r.log.Debug().Uint("schedule_id", id).Dur("delay", delay).Msg("one-shot timer registered")
		return nil
	}

	spec, err := CronSpec(sched)
	if err != nil {
		return err
	}
	entryID, err := r.cron.AddFunc(spec, func() { r.fire(id) })
	if err != nil {
		return err
	}
	r.entries[id] = entryID
	r.log.Debug().Uint("schedule_id", id).Str("spec", spec).Msg("recurring timer registered")
	return nil
}

// Unregister removes the schedule's timer if one is live. Unknown IDs are a
// no-op.
func (r *Registry) Unregister(scheduleID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(scheduleID)
}

func (r *Registry) removeLocked(scheduleID uint) {
	if entryID, ok := r.entries[scheduleID]; ok {
		r.cron.Remove(entryID)
		delete(r.entries, scheduleID)
	}
	if t, ok := r.timers[scheduleID]; ok {
		t.Stop()
		delete(r.timers, scheduleID)
	}
}

// ReconcileAll rebuilds the timer map from every active schedule in the
// store. Safe to call repeatedly: each Register replaces any existing
// timer, so the live set always equals the active set. Executions left
// running by a crash are closed first; an open one would make
// BeginExecution refuse every future firing of its schedule.
func (r *Registry) ReconcileAll() error {
	orphans, err := r.store.FailOrphanExecutions()
	if err != nil {
		return err
	}
	if orphans > 0 {
		r.log.Warn().Int64("executions", orphans).Msg("closed executions orphaned by restart")
	}

	scheds, err := r.store.ActiveSchedules()
	if err != nil {
		return err
	}
	for i := range scheds {
		sched := &scheds[i]
		if err := r.Register(sched); err != nil {
			// A schedule that validated at create time can still fail here,
			// e.g. its timezone disappeared from the host database. Skip it
			// rather than abort the whole reconcile.
			r.log.Error().Err(err).Uint("schedule_id", sched.ID).Msg("skipping unregistrable schedule")
		}
	}
	r.log.Info().Int("schedules", len(scheds)).Msg("registry reconciled")
	return nil
}

// Registered reports whether a live timer exists for the schedule.
func (r *Registry) Registered(scheduleID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, cronLive := r.entries[scheduleID]
	_, timerLive := r.timers[scheduleID]
	return cronLive || timerLive
}

// LiveCount returns how many timers are live, for reconcile checks and the
// engine snapshot.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) + len(r.timers)
}

// fire runs when a timer goes off. It re-reads the schedule so pauses and
// edits that raced the firing are respected, then hands off to the runner.
// A panic or error here must never take down the process or kill the cron
// entry; the next occurrence still fires.
func (r *Registry) fire(scheduleID uint) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Uint("schedule_id", scheduleID).Interface("panic", rec).Msg("schedule firing panicked")
		}
	}()

	r.mu.Lock()
	ctx := r.baseCtx
	r.mu.Unlock()

	sched, err := r.store.GetSchedule(scheduleID)
	if err != nil {
		r.log.Error().Err(err).Uint("schedule_id", scheduleID).Msg("fired schedule not loadable")
		return
	}
	if !sched.IsActive {
		return
	}

	exec, err := r.runner.Run(ctx, sched)
	if err != nil {
		r.log.Warn().Err(err).Uint("schedule_id", scheduleID).Msg("schedule run failed")
	} else {
		r.log.Info().Uint("schedule_id", scheduleID).Str("execution_id", exec.ID).
			Int("generated", exec.GeneratedCount).Int("published", exec.PublishedCount).
			Msg("schedule run finished")
	}

	// A fired one-shot deactivates itself; its timer is already spent.
	if sched.Kind == models.ScheduleKindOnce {
		if err := r.store.SetScheduleActive(scheduleID, false, nil); err != nil {
			r.log.Error().Err(err).Uint("schedule_id", scheduleID).Msg("failed to deactivate one-shot")
		}
		r.Unregister(scheduleID)
	}
}
