package store

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"content-panel/internal/database"
	"content-panel/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return New(db)
}

func seedPost(t *testing.T, s *Store, dueAt time.Time) *models.ScheduledPost {
	t.Helper()
	post := &models.ScheduledPost{
		UserID: 1,
		SiteID: 1,
		Title:  "hello",
		DueAt:  dueAt.UTC(),
		Status: models.PostStatusPending,
	}
	require.NoError(t, s.CreateScheduledPost(post))
	return post
}

func TestClaimDuePostOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	post := seedPost(t, s, time.Now().Add(-time.Minute))

	require.NoError(t, s.ClaimDuePost(post.ID))
	// Second claim must lose: the row already left pending.
	assert.ErrorIs(t, s.ClaimDuePost(post.ID), ErrNotClaimed)

	got, err := s.GetScheduledPost(post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublishing, got.Status)
}

func TestDuePostsSelection(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	overdue := seedPost(t, s, now.Add(-48*time.Hour))
	due := seedPost(t, s, now.Add(-time.Second))
	future := seedPost(t, s, now.Add(time.Hour))

	published := seedPost(t, s, now.Add(-time.Minute))
	require.NoError(t, s.ClaimDuePost(published.ID))
	require.NoError(t, s.MarkPostPublished(published.ID, 9, "https://x/9", now))

	posts, err := s.DuePosts(now)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	// Oldest first, far-overdue posts still eligible.
	assert.Equal(t, overdue.ID, posts[0].ID)
	assert.Equal(t, due.ID, posts[1].ID)
	for _, p := range posts {
		assert.NotEqual(t, future.ID, p.ID)
	}
}

func TestRecordPostFailureAttemptCap(t *testing.T) {
	s := newTestStore(t)
	post := seedPost(t, s, time.Now().Add(-time.Minute))

	require.NoError(t, s.RecordPostFailure(post.ID, 3, "boom 1"))
	got, err := s.GetScheduledPost(post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "boom 1", got.LastError)

	require.NoError(t, s.RecordPostFailure(post.ID, 3, "boom 2"))
	require.NoError(t, s.RecordPostFailure(post.ID, 3, "boom 3"))

	got, err = s.GetScheduledPost(post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
}

func TestCancelAndRescheduleOnlyWhilePending(t *testing.T) {
	s := newTestStore(t)
	post := seedPost(t, s, time.Now().Add(time.Hour))

	newDue := time.Now().Add(2 * time.Hour)
	require.NoError(t, s.ReschedulePost(post.ID, 1, newDue))

	require.NoError(t, s.ClaimDuePost(post.ID))
	assert.ErrorIs(t, s.CancelScheduledPost(post.ID, 1), ErrNotClaimed)
	assert.ErrorIs(t, s.ReschedulePost(post.ID, 1, newDue), ErrNotClaimed)
}

func TestBulkProgressInvariant(t *testing.T) {
	s := newTestStore(t)
	op := &models.BulkOperation{
		ID:         "op-1",
		UserID:     1,
		SiteID:     1,
		Kind:       models.BulkKindPublish,
		TargetType: "post",
		TargetIDs:  []int64{10, 20, 30},
		Status:     models.BulkStatusPending,
		TotalItems: 3,
	}
	require.NoError(t, s.CreateBulkOperation(op))
	require.NoError(t, s.StartBulkOperation(op.ID))

	_, err := s.BumpBulkProgress(op.ID, nil)
	require.NoError(t, err)
	_, err = s.BumpBulkProgress(op.ID, &models.BulkItemError{TargetID: 20, Message: "remote said no"})
	require.NoError(t, err)
	got, err := s.BumpBulkProgress(op.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, got.ProcessedItems)
	assert.Equal(t, 2, got.SuccessCount)
	assert.Equal(t, 1, got.FailureCount)
	assert.Equal(t, got.ProcessedItems, got.SuccessCount+got.FailureCount)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, int64(20), got.Errors[0].TargetID)
}

func TestStartBulkOperationClaims(t *testing.T) {
	s := newTestStore(t)
	op := &models.BulkOperation{
		ID: "op-claim", UserID: 1, SiteID: 1,
		Kind: models.BulkKindDelete, TargetType: "post",
		TargetIDs: []int64{1}, Status: models.BulkStatusPending, TotalItems: 1,
	}
	require.NoError(t, s.CreateBulkOperation(op))

	require.NoError(t, s.StartBulkOperation(op.ID))

	// A processing row stays claimable so a run interrupted by a crash can
	// resume, and started_at keeps its original value across the re-claim.
	first, err := s.GetBulkOperation(op.ID)
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)
	require.NoError(t, s.StartBulkOperation(op.ID))
	second, err := s.GetBulkOperation(op.ID)
	require.NoError(t, err)
	require.NotNil(t, second.StartedAt)
	assert.True(t, second.StartedAt.Equal(*first.StartedAt))

	// Terminal operations are never claimable.
	require.NoError(t, s.FinishBulkOperation(op.ID, models.BulkStatusCompleted, ""))
	assert.ErrorIs(t, s.StartBulkOperation(op.ID), ErrNotClaimed)
}

func TestBulkCancelSemantics(t *testing.T) {
	s := newTestStore(t)

	pending := &models.BulkOperation{
		ID: "op-pending", UserID: 1, SiteID: 1,
		Kind: models.BulkKindPublish, TargetType: "post",
		TargetIDs: []int64{1}, Status: models.BulkStatusPending, TotalItems: 1,
	}
	require.NoError(t, s.CreateBulkOperation(pending))
	require.NoError(t, s.RequestBulkCancel(pending.ID, 1))
	got, err := s.GetBulkOperation(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusCancelled, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// Cancel on a terminal operation is rejected.
	assert.ErrorIs(t, s.RequestBulkCancel(pending.ID, 1), ErrTerminal)

	processing := &models.BulkOperation{
		ID: "op-proc", UserID: 1, SiteID: 1,
		Kind: models.BulkKindPublish, TargetType: "post",
		TargetIDs: []int64{1, 2}, Status: models.BulkStatusPending, TotalItems: 2,
	}
	require.NoError(t, s.CreateBulkOperation(processing))
	require.NoError(t, s.StartBulkOperation(processing.ID))
	require.NoError(t, s.RequestBulkCancel(processing.ID, 1))

	got, err = s.GetBulkOperation(processing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusProcessing, got.Status)
	assert.True(t, got.CancelRequested)

	flag, err := s.BulkCancelRequested(processing.ID)
	require.NoError(t, err)
	assert.True(t, flag)
}

func TestFinishBulkOperationIsFinal(t *testing.T) {
	s := newTestStore(t)
	op := &models.BulkOperation{
		ID: "op-final", UserID: 1, SiteID: 1,
		Kind: models.BulkKindPublish, TargetType: "post",
		TargetIDs: []int64{1}, Status: models.BulkStatusPending, TotalItems: 1,
	}
	require.NoError(t, s.CreateBulkOperation(op))
	require.NoError(t, s.StartBulkOperation(op.ID))

	require.NoError(t, s.FinishBulkOperation(op.ID, models.BulkStatusFailed, "store went away"))
	got, err := s.GetBulkOperation(op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusFailed, got.Status)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "store went away", got.Errors[0].Message)

	assert.ErrorIs(t, s.FinishBulkOperation(op.ID, models.BulkStatusCompleted, ""), ErrTerminal)
}

func TestBeginExecutionReentrancyGuard(t *testing.T) {
	s := newTestStore(t)

	exec, err := s.BeginExecution(7)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusRunning, exec.Status)

	_, err = s.BeginExecution(7)
	assert.ErrorIs(t, err, ErrExecutionRunning)

	// A different schedule is unaffected.
	_, err = s.BeginExecution(8)
	require.NoError(t, err)

	require.NoError(t, s.CloseExecution(exec, models.ExecutionStatusCompleted, ""))
	_, err = s.BeginExecution(7)
	require.NoError(t, err)
}

func TestCloseExecutionExactlyOnce(t *testing.T) {
	s := newTestStore(t)

	exec, err := s.BeginExecution(1)
	require.NoError(t, err)
	exec.GeneratedCount = 2
	exec.PublishedCount = 1
	exec.DraftIDs = []uint{11, 12}

	require.NoError(t, s.CloseExecution(exec, models.ExecutionStatusCompleted, ""))
	assert.ErrorIs(t, s.CloseExecution(exec, models.ExecutionStatusFailed, "late"), ErrTerminal)

	got, err := s.GetExecution(exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, got.Status)
	assert.Equal(t, 2, got.GeneratedCount)
	assert.Equal(t, []uint{11, 12}, []uint(got.DraftIDs))
	assert.NotNil(t, got.CompletedAt)
}

func TestDeleteScheduleRemovesExecutionsKeepsDrafts(t *testing.T) {
	s := newTestStore(t)

	sched := &models.AutomationSchedule{
		UserID: 1, SiteID: 1, Name: "weekly digest",
		Kind: models.ScheduleKindDaily, TimeOfDay: "08:00", Timezone: "UTC",
		Topic: "digest", IsActive: true,
	}
	require.NoError(t, s.CreateSchedule(sched))

	exec, err := s.BeginExecution(sched.ID)
	require.NoError(t, err)
	require.NoError(t, s.CloseExecution(exec, models.ExecutionStatusCompleted, ""))

	draft := &models.ContentDraft{
		UserID: 1, SiteID: 1, ScheduleID: &sched.ID, ExecutionID: exec.ID,
		Title: "digest #1", Status: models.DraftStatusPending,
	}
	require.NoError(t, s.CreateDraft(draft))

	require.NoError(t, s.DeleteSchedule(sched.ID, 1))

	_, err = s.GetExecution(exec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	kept, err := s.GetDraft(draft.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "digest #1", kept.Title)
}

func TestRecordScheduleRunCounters(t *testing.T) {
	s := newTestStore(t)
	sched := &models.AutomationSchedule{
		UserID: 1, SiteID: 1, Name: "counter",
		Kind: models.ScheduleKindDaily, TimeOfDay: "08:00", Timezone: "UTC",
		Topic: "t", IsActive: true,
	}
	require.NoError(t, s.CreateSchedule(sched))

	next := time.Now().Add(24 * time.Hour).UTC()
	require.NoError(t, s.RecordScheduleRun(sched.ID, time.Now(), true, &next))
	require.NoError(t, s.RecordScheduleRun(sched.ID, time.Now(), false, &next))

	got, err := s.GetSchedule(sched.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalRuns)
	assert.Equal(t, 1, got.SuccessRuns)
	assert.Equal(t, 1, got.FailedRuns)
	assert.NotNil(t, got.LastRunAt)
	require.NotNil(t, got.NextRunAt)
	assert.WithinDuration(t, next, *got.NextRunAt, time.Second)
}
