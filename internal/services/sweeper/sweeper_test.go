package sweeper

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

	"content-panel/internal/collab"
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

	st := store.New(db)
	require.NoError(t, st.DB().Create(&models.Site{
		UserID: 1, Name: "blog", BaseURL: "https://blog.example",
	}).Error)
	return st
}

// stubPublisher counts Publish calls and fails while failWith is set.
type stubPublisher struct {
	mu       sync.Mutex
	publishN int
	failWith error
	lastSent collab.PostContent
}

func (p *stubPublisher) Publish(_ context.Context, _ *models.Site, content collab.PostContent) (*collab.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publishN++
	p.lastSent = content
	if p.failWith != nil {
		return nil, p.failWith
	}
	return &collab.PublishResult{RemoteID: 777, RemoteURL: "https://blog.example/?p=777"}, nil
}

func (p *stubPublisher) SetPostState(context.Context, *models.Site, int64, string) error {
	return nil
}
func (p *stubPublisher) DeletePost(context.Context, *models.Site, int64) error { return nil }
func (p *stubPublisher) UpdatePostMetadata(context.Context, *models.Site, int64, collab.Metadata) error {
	return nil
}
func (p *stubPublisher) UploadMedia(context.Context, *models.Site, string, []byte) (int64, error) {
	return 0, nil
}
func (p *stubPublisher) EnsureTaxonomyTerms(context.Context, *models.Site, string, []string) ([]int64, error) {
	return nil, nil
}

func seedDue(t *testing.T, st *store.Store, due time.Time) *models.ScheduledPost {
	t.Helper()
	post := &models.ScheduledPost{
		UserID: 1, SiteID: 1,
		Title: "due post", Body: "<p>hi</p>",
		DueAt:  due.UTC(),
		Status: models.PostStatusPending,
	}
	require.NoError(t, st.CreateScheduledPost(post))
	return post
}

func newTestSweeper(st *store.Store, pub collab.Publisher) *Sweeper {
	return New(Config{Interval: time.Minute, MaxAttempts: 3}, st, pub, zerolog.Nop())
}

func TestSweepPublishesDuePostOnce(t *testing.T) {
	st := newTestStore(t)
	pub := &stubPublisher{}
	s := newTestSweeper(st, pub)

	post := seedDue(t, st, time.Now().Add(-time.Minute))

	s.RunOnce(context.Background(), time.Now())
	s.RunOnce(context.Background(), time.Now())

	assert.Equal(t, 1, pub.publishN)

	got, err := st.GetScheduledPost(post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, got.Status)
	assert.Equal(t, int64(777), got.RemotePostID)
	assert.Equal(t, "https://blog.example/?p=777", got.RemoteURL)
	assert.NotNil(t, got.PublishedAt)
	// The snapshot publishes live.
	assert.Equal(t, "publish", pub.lastSent.State)
	assert.Equal(t, "due post", pub.lastSent.Title)
}

func TestSweepIgnoresFuturePosts(t *testing.T) {
	st := newTestStore(t)
	pub := &stubPublisher{}
	s := newTestSweeper(st, pub)

	seedDue(t, st, time.Now().Add(time.Hour))
	s.RunOnce(context.Background(), time.Now())
	assert.Equal(t, 0, pub.publishN)
}

func TestSweepPublishesLongOverduePost(t *testing.T) {
	st := newTestStore(t)
	pub := &stubPublisher{}
	s := newTestSweeper(st, pub)

	post := seedDue(t, st, time.Now().Add(-30*24*time.Hour))
	s.RunOnce(context.Background(), time.Now())

	got, err := st.GetScheduledPost(post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, got.Status)
	assert.Equal(t, 1, pub.publishN)
}

func TestSweepRetriesUntilAttemptCap(t *testing.T) {
	st := newTestStore(t)
	pub := &stubPublisher{failWith: errors.New("site is down")}
	s := newTestSweeper(st, pub)

	post := seedDue(t, st, time.Now().Add(-time.Minute))

	// Attempts 1 and 2 park the post back to pending for a later sweep.
	s.RunOnce(context.Background(), time.Now())
	got, err := st.GetScheduledPost(post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "site is down", got.LastError)

	s.RunOnce(context.Background(), time.Now())
	// Attempt 3 hits the cap: terminally failed, never retried again.
	s.RunOnce(context.Background(), time.Now())

	got, err = st.GetScheduledPost(post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)

	s.RunOnce(context.Background(), time.Now())
	assert.Equal(t, 3, pub.publishN)
}

func TestSweepRecoversAfterTransientFailure(t *testing.T) {
	st := newTestStore(t)
	pub := &stubPublisher{failWith: errors.New("flaky")}
	s := newTestSweeper(st, pub)

	post := seedDue(t, st, time.Now().Add(-time.Minute))

	s.RunOnce(context.Background(), time.Now())
	pub.failWith = nil
	s.RunOnce(context.Background(), time.Now())

	got, err := st.GetScheduledPost(post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Empty(t, got.LastError) // cleared on success
}

func TestSweepIsolatesRowFailures(t *testing.T) {
	st := newTestStore(t)
	pub := &stubPublisher{}
	s := newTestSweeper(st, pub)

	// First row references a site that does not exist; the second must still
	// publish in the same sweep.
	broken := &models.ScheduledPost{
		UserID: 1, SiteID: 999, Title: "orphan",
		DueAt: time.Now().Add(-2 * time.Minute).UTC(), Status: models.PostStatusPending,
	}
	require.NoError(t, st.CreateScheduledPost(broken))
	healthy := seedDue(t, st, time.Now().Add(-time.Minute))

	s.RunOnce(context.Background(), time.Now())

	got, err := st.GetScheduledPost(healthy.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, got.Status)

	onward, err := st.GetScheduledPost(broken.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, onward.Attempts)
}
