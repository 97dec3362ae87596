// Package sweeper publishes scheduled posts whose due time has passed. It
// runs a fixed-period sweep; retries are bounded and happen through
// re-selection on later sweeps, not dedicated timers.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"content-panel/internal/collab"
	"content-panel/internal/models"
	"content-panel/internal/store"
)

type Config struct {
	Interval    time.Duration
	MaxAttempts int
	CallTimeout time.Duration
}

type Sweeper struct {
	cfg       Config
	store     *store.Store
	publisher collab.Publisher
	log       zerolog.Logger
}

func New(cfg Config, st *store.Store, publisher collab.Publisher, log zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Sweeper{
		cfg:       cfg,
		store:     st,
		publisher: publisher,
		log:       log.With().Str("component", "sweeper").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.cfg.Interval).Msg("due-post sweeper started")
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("due-post sweeper stopped")
			return
		case now := <-ticker.C:
			s.RunOnce(ctx, now)
		}
	}
}

// RunOnce performs one sweep. Each row is handled in isolation: a failure
// on one post never touches its siblings. A store error selecting rows
// aborts only this sweep; the next tick tries again.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) {
	posts, err := s.store.DuePosts(now)
	if err != nil {
		s.log.Error().Err(err).Msg("due-post selection failed")
		return
	}

	for i := range posts {
		if ctx.Err() != nil {
			return
		}
		s.publishOne(ctx, &posts[i])
	}
}

func (s *Sweeper) publishOne(ctx context.Context, post *models.ScheduledPost) {
	// Claim first. Losing the claim means another sweep (or an overlapping
	// tick) already owns this row; double-publishing is what this guards.
	if err := s.store.ClaimDuePost(post.ID); err != nil {
		if !errors.Is(err, store.ErrNotClaimed) {
			s.log.Error().Err(err).Uint("post_id", post.ID).Msg("claim failed")
		}
		return
	}

	site, err := s.store.GetSite(post.SiteID)
	if err != nil {
		s.recordFailure(post.ID, "load site: "+err.Error())
		return
	}

	callCtx := ctx
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}

	res, err := s.publisher.Publish(callCtx, site, collab.PostContent{
		Title:         post.Title,
		BodyHTML:      post.Body,
		Excerpt:       post.Excerpt,
		Categories:    post.Categories,
		Tags:          post.Tags,
		FeaturedImage: post.FeaturedImage,
		State:         "publish",
	})
	if err != nil {
		s.recordFailure(post.ID, err.Error())
		return
	}

	now := time.Now().UTC()
	if err := s.store.MarkPostPublished(post.ID, res.RemoteID, res.RemoteURL, now); err != nil {
		s.log.Error().Err(err).Uint("post_id", post.ID).Msg("cannot record publish result")
		return
	}
	s.log.Info().Uint("post_id", post.ID).Int64("remote_id", res.RemoteID).Msg("scheduled post published")
}

func (s *Sweeper) recordFailure(postID uint, message string) {
	if err := s.store.RecordPostFailure(postID, s.cfg.MaxAttempts, message); err != nil {
		s.log.Error().Err(err).Uint("post_id", postID).Msg("cannot record publish failure")
		return
	}
	s.log.Warn().Uint("post_id", postID).Str("reason", message).Msg("scheduled post publish failed")
}
