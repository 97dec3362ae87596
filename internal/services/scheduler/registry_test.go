package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"content-panel/internal/database"
	"content-panel/internal/models"
	"content-panel/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return store.New(db)
}

// recordingRunner counts invocations and signals each one.
type recordingRunner struct {
	mu    sync.Mutex
	runs  []uint
	fired chan uint
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{fired: make(chan uint, 16)}
}

func (r *recordingRunner) Run(_ context.Context, sched *models.AutomationSchedule) (*models.AutomationExecution, error) {
	r.mu.Lock()
	r.runs = append(r.runs, sched.ID)
	r.mu.Unlock()
	r.fired <- sched.ID
	return &models.AutomationExecution{ID: "test-exec", ScheduleID: sched.ID}, nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func seedSchedule(t *testing.T, st *store.Store, mutate func(*models.AutomationSchedule)) *models.AutomationSchedule {
	t.Helper()
	sched := &models.AutomationSchedule{
		UserID: 1, SiteID: 1, Name: "test",
		Kind: models.ScheduleKindDaily, TimeOfDay: "03:00", Timezone: "UTC",
		Topic: "anything", IsActive: true,
	}
	if mutate != nil {
		mutate(sched)
	}
	require.NoError(t, st.CreateSchedule(sched))
	return sched
}

func TestRegisterIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	reg := NewRegistry(st, newRecordingRunner(), zerolog.Nop())
	sched := seedSchedule(t, st, nil)

	require.NoError(t, reg.Register(sched))
	require.NoError(t, reg.Register(sched))
	require.NoError(t, reg.Register(sched))

	assert.Equal(t, 1, reg.LiveCount())
	assert.True(t, reg.Registered(sched.ID))
}

func TestRegisterRejectsInvalidRecurrence(t *testing.T) {
	st := newTestStore(t)
	reg := NewRegistry(st, newRecordingRunner(), zerolog.Nop())

	bad := &models.AutomationSchedule{
		ID: 99, Kind: models.ScheduleKindCustom, CronExpr: "nope", Timezone: "UTC",
	}
	assert.Error(t, reg.Register(bad))
	assert.False(t, reg.Registered(99))
	assert.Equal(t, 0, reg.LiveCount())
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	st := newTestStore(t)
	reg := NewRegistry(st, newRecordingRunner(), zerolog.Nop())
	reg.Unregister(12345)
	assert.Equal(t, 0, reg.LiveCount())
}

func TestReconcileAllRebuildsFromStore(t *testing.T) {
	st := newTestStore(t)
	reg := NewRegistry(st, newRecordingRunner(), zerolog.Nop())

	a := seedSchedule(t, st, nil)
	b := seedSchedule(t, st, func(s *models.AutomationSchedule) {
		s.Kind = models.ScheduleKindWeekly
		s.Weekday = 1
	})
	seedSchedule(t, st, func(s *models.AutomationSchedule) {
		s.IsActive = false
	})

	require.NoError(t, reg.ReconcileAll())
	assert.Equal(t, 2, reg.LiveCount())
	assert.True(t, reg.Registered(a.ID))
	assert.True(t, reg.Registered(b.ID))

	// Reconciling again must not duplicate timers.
	require.NoError(t, reg.ReconcileAll())
	assert.Equal(t, 2, reg.LiveCount())
}

func TestReconcileAllSkipsUnregistrable(t *testing.T) {
	st := newTestStore(t)
	reg := NewRegistry(st, newRecordingRunner(), zerolog.Nop())

	good := seedSchedule(t, st, nil)
	// Write a record whose recurrence no longer validates, bypassing Validate.
	broken := seedSchedule(t, st, nil)
	require.NoError(t, st.DB().Model(broken).Update("cron_expr", "bad").Error)
	require.NoError(t, st.DB().Model(broken).Update("kind", models.ScheduleKindCustom).Error)

	require.NoError(t, reg.ReconcileAll())
	assert.True(t, reg.Registered(good.ID))
	assert.False(t, reg.Registered(broken.ID))
	assert.Equal(t, 1, reg.LiveCount())
}

func TestPastDueOneShotFiresImmediatelyAndDeactivates(t *testing.T) {
	st := newTestStore(t)
	runner := newRecordingRunner()
	reg := NewRegistry(st, runner, zerolog.Nop())

	past := time.Now().Add(-time.Hour).UTC()
	sched := seedSchedule(t, st, func(s *models.AutomationSchedule) {
		s.Kind = models.ScheduleKindOnce
		s.RunAt = &past
	})

	require.NoError(t, reg.Register(sched))

	select {
	case id := <-runner.fired:
		assert.Equal(t, sched.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot never fired")
	}

	// Spent one-shots deactivate and drop their timer.
	require.Eventually(t, func() bool {
		got, err := st.GetSchedule(sched.ID)
		return err == nil && !got.IsActive && !reg.Registered(sched.ID)
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, runner.count())
}

// failingRunner signals each invocation and always reports failure.
type failingRunner struct {
	fired chan uint
}

func (r *failingRunner) Run(_ context.Context, sched *models.AutomationSchedule) (*models.AutomationExecution, error) {
	r.fired <- sched.ID
	return nil, errors.New("run blew up")
}

func TestOneShotDeactivatesEvenWhenRunFails(t *testing.T) {
	st := newTestStore(t)
	runner := &failingRunner{fired: make(chan uint, 1)}
	reg := NewRegistry(st, runner, zerolog.Nop())

	past := time.Now().Add(-time.Hour).UTC()
	sched := seedSchedule(t, st, func(s *models.AutomationSchedule) {
		s.Kind = models.ScheduleKindOnce
		s.RunAt = &past
	})
	require.NoError(t, reg.Register(sched))

	select {
	case <-runner.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot never fired")
	}

	// A failed run still spends the one-shot: it must not stay active and
	// refire after the next restart.
	require.Eventually(t, func() bool {
		got, err := st.GetSchedule(sched.ID)
		return err == nil && !got.IsActive && !reg.Registered(sched.ID)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestReconcileAllClosesOrphanedExecutions(t *testing.T) {
	st := newTestStore(t)
	reg := NewRegistry(st, newRecordingRunner(), zerolog.Nop())
	sched := seedSchedule(t, st, nil)

	// A running execution left behind by a crash blocks every firing of its
	// schedule until something closes it.
	orphan, err := st.BeginExecution(sched.ID)
	require.NoError(t, err)
	_, err = st.BeginExecution(sched.ID)
	require.ErrorIs(t, err, store.ErrExecutionRunning)

	require.NoError(t, reg.ReconcileAll())

	got, err := st.GetExecution(orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "interrupted")
	require.NotNil(t, got.CompletedAt)

	// The schedule accepts firings again.
	next, err := st.BeginExecution(sched.ID)
	require.NoError(t, err)
	require.NoError(t, st.CloseExecution(next, models.ExecutionStatusCompleted, ""))
}

func TestPausedScheduleDoesNotRun(t *testing.T) {
	st := newTestStore(t)
	runner := newRecordingRunner()
	reg := NewRegistry(st, runner, zerolog.Nop())

	past := time.Now().Add(-time.Minute).UTC()
	sched := seedSchedule(t, st, func(s *models.AutomationSchedule) {
		s.Kind = models.ScheduleKindOnce
		s.RunAt = &past
	})
	// Deactivated between registration and firing: fire re-reads the store
	// and must skip.
	require.NoError(t, st.SetScheduleActive(sched.ID, false, nil))
	require.NoError(t, reg.Register(sched))

	select {
	case <-runner.fired:
		t.Fatal("paused schedule ran")
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, 0, runner.count())
}
