// Package pipeline runs one firing of an automation schedule: acquire
// source items, generate content and metadata per item, pick an image, and
// optionally publish. Item failures are recorded and skipped; only source
// acquisition failures abort a run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"content-panel/internal/collab"
	"content-panel/internal/models"
	"content-panel/internal/services/scheduler"
	"content-panel/internal/store"
)

type Config struct {
	CallTimeout time.Duration
}

type Pipeline struct {
	cfg       Config
	store     *store.Store
	generator collab.ContentGenerator
	metadata  collab.MetadataGenerator
	images    collab.ImageProvider
	publisher collab.Publisher
	feeds     collab.FeedReader
	log       zerolog.Logger
}

func New(cfg Config, st *store.Store, gen collab.ContentGenerator, meta collab.MetadataGenerator,
	images collab.ImageProvider, publisher collab.Publisher, feeds collab.FeedReader, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		generator: gen,
		metadata:  meta,
		images:    images,
		publisher: publisher,
		feeds:     feeds,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// sourceItem is one unit of work inside a run, either a feed entry or the
// schedule's own topic.
type sourceItem struct {
	Topic string
	Link  string
}

// Run executes the full pipeline for a schedule. Timer firings and manual
// run-now calls share this exact path, so both leave identical execution
// history. The returned execution is always closed. Named returns matter
// here: the panic recovery below rewrites them, so a panicked run surfaces
// as (closed exec, error) instead of a success-shaped nil pair.
func (p *Pipeline) Run(ctx context.Context, sched *models.AutomationSchedule) (exec *models.AutomationExecution, err error) {
	exec, err = p.store.BeginExecution(sched.ID)
	if err != nil {
		// Includes ErrExecutionRunning: the re-entrancy guard for schedules
		// whose previous run is still going.
		return nil, err
	}

	log := p.log.With().Uint("schedule_id", sched.ID).Str("execution_id", exec.ID).Logger()
	startedAt := exec.StartedAt

	// A panic anywhere below must close the execution as failed rather
	// than leak a permanently "running" record or kill the timer goroutine.
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("pipeline run panicked")
			p.closeRun(exec, sched, startedAt, models.ExecutionStatusFailed, fmt.Sprintf("internal error: %v", rec))
			err = fmt.Errorf("pipeline run panicked: %v", rec)
		}
	}()

	site, err := p.store.GetSite(sched.SiteID)
	if err != nil {
		msg := fmt.Sprintf("load site %d: %v", sched.SiteID, err)
		p.closeRun(exec, sched, startedAt, models.ExecutionStatusFailed, msg)
		return exec, fmt.Errorf("%s", msg)
	}

	// Step 1: source acquisition. Failure here aborts the whole run with
	// no partial output.
	items, err := p.sourceItems(ctx, sched)
	if err != nil {
		msg := fmt.Sprintf("source acquisition: %v", err)
		p.closeRun(exec, sched, startedAt, models.ExecutionStatusFailed, msg)
		return exec, fmt.Errorf("%s", msg)
	}

	log.Info().Int("items", len(items)).Msg("pipeline run started")

	// Step 2: per-item loop. Each item fails independently; every attempted
	// item leaves a draft ID on the execution whatever its outcome.
	for _, item := range items {
		if ctx.Err() != nil {
			p.closeRun(exec, sched, startedAt, models.ExecutionStatusFailed, "run cancelled: "+ctx.Err().Error())
			return exec, ctx.Err()
		}

		draftID, published, itemErr := p.runItem(ctx, sched, site, exec.ID, item)
		if draftID != 0 {
			exec.DraftIDs = append(exec.DraftIDs, draftID)
		}
		if itemErr != nil {
			log.Warn().Str("topic", item.Topic).Err(itemErr).Msg("pipeline item failed")
			continue
		}
		exec.GeneratedCount++
		if published {
			exec.PublishedCount++
		}
	}

	// Step 3: closure.
	p.closeRun(exec, sched, startedAt, models.ExecutionStatusCompleted, "")
	log.Info().Int("generated", exec.GeneratedCount).Int("published", exec.PublishedCount).
		Int("attempted", len(exec.DraftIDs)).Msg("pipeline run completed")
	return exec, nil
}

// sourceItems fetches feed entries capped at max_items_per_run, or falls
// back to the schedule's topic as the sole item.
func (p *Pipeline) sourceItems(ctx context.Context, sched *models.AutomationSchedule) ([]sourceItem, error) {
	if sched.FeedURL == "" {
		if sched.Topic == "" {
			return nil, fmt.Errorf("schedule has neither feed_url nor topic")
		}
		return []sourceItem{{Topic: sched.Topic}}, nil
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	feedItems, err := p.feeds.FetchItems(callCtx, sched.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", sched.FeedURL, err)
	}

	max := sched.MaxItemsPerRun
	if max > 0 && len(feedItems) > max {
		feedItems = feedItems[:max]
	}
	items := make([]sourceItem, 0, len(feedItems))
	for _, fi := range feedItems {
		items = append(items, sourceItem{Topic: fi.Title, Link: fi.Link})
	}
	return items, nil
}

// runItem is the per-item failure boundary. Steps are strictly sequential:
// content, then metadata, then image, then (if auto-publish) publish. The
// draft row is created no matter how far the item got.
func (p *Pipeline) runItem(ctx context.Context, sched *models.AutomationSchedule, site *models.Site,
	executionID string, item sourceItem) (draftID uint, published bool, err error) {

	schedID := sched.ID
	draft := &models.ContentDraft{
		UserID:      sched.UserID,
		SiteID:      sched.SiteID,
		ScheduleID:  &schedID,
		ExecutionID: executionID,
		SourceTitle: item.Topic,
		SourceLink:  item.Link,
		Status:      models.DraftStatusPending,
	}

	failDraft := func(stage string, cause error) (uint, bool, error) {
		draft.Status = models.DraftStatusFailed
		draft.FailureReason = fmt.Sprintf("%s: %v", stage, cause)
		if createErr := p.store.CreateDraft(draft); createErr != nil {
			p.log.Error().Err(createErr).Msg("cannot persist failed draft")
			return 0, false, fmt.Errorf("%s: %v (and draft not persisted: %v)", stage, cause, createErr)
		}
		return draft.ID, false, fmt.Errorf("%s: %w", stage, cause)
	}

	// Content generation.
	callCtx, cancel := p.callContext(ctx)
	content, err := p.generator.Generate(callCtx, item.Topic)
	cancel()
	if err != nil {
		return failDraft("generate content", err)
	}
	draft.Title = content.Title
	draft.Body = content.BodyHTML
	draft.Excerpt = content.Excerpt

	// Metadata generation. Unparsable payloads degrade to defaults; only a
	// failed call counts as a metadata failure.
	callCtx, cancel = p.callContext(ctx)
	rawMeta, err := p.metadata.GenerateMetadata(callCtx, content.Title, content.BodyHTML)
	cancel()
	if err != nil {
		return failDraft("generate metadata", err)
	}
	meta, parsed := parseMetadata(rawMeta)
	if !parsed {
		p.log.Warn().Str("topic", item.Topic).Str("raw_payload", rawMeta).
			Msg("metadata payload unparsable, using defaults")
	}
	draft.Categories = meta.Categories
	draft.Tags = meta.Tags
	draft.SEODescription = meta.SEODescription
	draft.SEOKeywords = meta.SEOKeywords

	// Image search. Zero results and provider errors both just leave the
	// draft without an image.
	phrase := content.Title
	if len(meta.SEOKeywords) > 0 {
		phrase = meta.SEOKeywords[0]
	}
	callCtx, cancel = p.callContext(ctx)
	imgs, err := p.images.Search(callCtx, phrase, 3)
	cancel()
	if err != nil {
		p.log.Warn().Str("phrase", phrase).Err(err).Msg("image search failed, continuing without image")
	} else if len(imgs) > 0 {
		draft.FeaturedImage = imgs[0].URL
	}

	if err := p.store.CreateDraft(draft); err != nil {
		return 0, false, fmt.Errorf("persist draft: %w", err)
	}

	if !sched.AutoPublish {
		return draft.ID, false, nil
	}

	// Publish step.
	state := sched.PublishState
	if state == "" {
		state = site.DefaultPublishState
	}
	callCtx, cancel = p.callContext(ctx)
	res, err := p.publisher.Publish(callCtx, site, collab.PostContent{
		Title:         draft.Title,
		BodyHTML:      draft.Body,
		Excerpt:       draft.Excerpt,
		Categories:    draft.Categories,
		Tags:          draft.Tags,
		FeaturedImage: draft.FeaturedImage,
		State:         state,
	})
	cancel()
	if err != nil {
		draft.Status = models.DraftStatusFailed
		draft.FailureReason = fmt.Sprintf("publish: %v", err)
		if saveErr := p.store.SaveDraft(draft); saveErr != nil {
			p.log.Error().Err(saveErr).Uint("draft_id", draft.ID).Msg("cannot persist draft failure")
		}
		return draft.ID, false, fmt.Errorf("publish: %w", err)
	}

	draft.Status = models.DraftStatusPublished
	draft.RemotePostID = res.RemoteID
	draft.RemoteURL = res.RemoteURL
	if err := p.store.SaveDraft(draft); err != nil {
		p.log.Error().Err(err).Uint("draft_id", draft.ID).Msg("cannot persist publish result")
	}
	return draft.ID, true, nil
}

// closeRun finalizes the execution record and the schedule's run counters.
// nextRun is recomputed here so the persisted value always reflects the
// recurrence after this firing; one-shots get nil.
func (p *Pipeline) closeRun(exec *models.AutomationExecution, sched *models.AutomationSchedule,
	startedAt time.Time, status models.ExecutionStatus, errMsg string) {

	if err := p.store.CloseExecution(exec, status, errMsg); err != nil {
		p.log.Error().Err(err).Str("execution_id", exec.ID).Msg("cannot close execution")
	}

	nextRun, err := scheduler.NextRun(sched, time.Now())
	if err != nil {
		p.log.Error().Err(err).Uint("schedule_id", sched.ID).Msg("cannot compute next run")
	}
	succeeded := status == models.ExecutionStatusCompleted
	if err := p.store.RecordScheduleRun(sched.ID, startedAt, succeeded, nextRun); err != nil {
		p.log.Error().Err(err).Uint("schedule_id", sched.ID).Msg("cannot record schedule run")
	}
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}
