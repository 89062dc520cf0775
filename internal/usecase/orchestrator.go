// Package usecase coordinates the content automation pipeline and the
// submission review workflow.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"TravelReport/internal/domain"
	"TravelReport/internal/images"
	"TravelReport/internal/metrics"
	"TravelReport/internal/ports"
	"TravelReport/internal/quality"
	"TravelReport/internal/rewrite"
	"TravelReport/internal/slug"
)

// Stats is the cumulative ingest counter snapshot since process start.
type Stats struct {
	Runs            int
	StoriesIngested int
	StoriesRejected int
	Duplicates      int
	Errors          int
	LastRunAt       time.Time
}

// Options tunes one orchestrator instance.
type Options struct {
	MaxStoriesPerRun int
	Workers          int
	RewriteStrict    bool
	RequestTimeout   time.Duration
}

// Orchestrator drives feed candidates through rewrite, classification,
// image assignment, and the quality gate into the repository.
type Orchestrator struct {
	source   ports.FeedSource
	repo     ports.StoryRepository
	rewriter *rewrite.Rewriter
	classer  ports.Classifier
	imgsrc   ports.ImageSource
	scorer   *quality.Scorer
	registry *images.DedupRegistry
	metrics  *metrics.Metrics
	logger   *slog.Logger
	opts     Options

	runMu sync.Mutex // one ingest run at a time
	mu    sync.Mutex // guards stats
	stats Stats
}

// NewOrchestrator wires the pipeline. Classifier and image source may be nil;
// the matching stages then pass candidates through unchanged.
func NewOrchestrator(
	source ports.FeedSource,
	repo ports.StoryRepository,
	rewriter *rewrite.Rewriter,
	classer ports.Classifier,
	imgsrc ports.ImageSource,
	scorer *quality.Scorer,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts Options,
) *Orchestrator {
	if opts.MaxStoriesPerRun <= 0 {
		opts.MaxStoriesPerRun = 8
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 20 * time.Second
	}
	return &Orchestrator{
		source:   source,
		repo:     repo,
		rewriter: rewriter,
		classer:  classer,
		imgsrc:   imgsrc,
		scorer:   scorer,
		registry: images.NewDedupRegistry(),
		metrics:  m,
		logger:   logger,
		opts:     opts,
	}
}

// IngestContent executes one automation run. Re-ingesting the same feeds is
// idempotent: candidates whose source id is already stored count as
// duplicates. A failing candidate never aborts its siblings; every failure
// lands in the report instead.
func (o *Orchestrator) IngestContent(ctx context.Context) (*domain.RunReport, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	report := &domain.RunReport{
		QualityReport: map[string]domain.QualityScore{},
		StartedAt:     time.Now().UTC(),
	}
	o.registry.Reset()

	candidates, fetchErrs := o.source.FetchCandidates(ctx)
	for _, err := range fetchErrs {
		report.Errors = append(report.Errors, err.Error())
	}
	o.logger.Info("run started", "candidates", len(candidates), "fetch_errors", len(fetchErrs))

	fresh, duplicates, dedupErrs := o.dedup(ctx, candidates)
	report.Duplicates = duplicates
	report.Errors = append(report.Errors, dedupErrs...)
	if len(fresh) > o.opts.MaxStoriesPerRun {
		fresh = fresh[:o.opts.MaxStoriesPerRun]
	}

	var (
		wg       sync.WaitGroup
		reportMu sync.Mutex
		sem      = make(chan struct{}, o.opts.Workers)
	)
	for _, candidate := range fresh {
		wg.Add(1)
		sem <- struct{}{}
		go func(c domain.RawCandidate) {
			defer wg.Done()
			defer func() { <-sem }()

			story, score, err := o.processCandidate(ctx, c)

			reportMu.Lock()
			defer reportMu.Unlock()
			switch {
			case err == nil:
				report.StoriesIngested++
				report.QualityReport[story.Slug] = score
				o.observe(metrics.OutcomePublished, score.Score)
			case errors.Is(err, domain.ErrQualityGateFailed):
				report.StoriesRejected++
				report.Errors = append(report.Errors, err.Error())
				o.observe(metrics.OutcomeRejected, score.Score)
			case errors.Is(err, domain.ErrDuplicateSlug):
				report.Duplicates++
				report.Errors = append(report.Errors, err.Error())
				o.count(metrics.OutcomeDuplicate)
			default:
				report.Errors = append(report.Errors, err.Error())
				o.count(metrics.OutcomeError)
			}
		}(candidate)
	}
	wg.Wait()

	report.FinishedAt = time.Now().UTC()
	o.recordRun(report)
	o.logger.Info("run finished",
		"ingested", report.StoriesIngested,
		"rejected", report.StoriesRejected,
		"duplicates", report.Duplicates,
		"errors", len(report.Errors),
		"took", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// Stats returns the cumulative counters since process start.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

func (o *Orchestrator) dedup(ctx context.Context, candidates []domain.RawCandidate) ([]domain.RawCandidate, int, []string) {
	var (
		fresh      []domain.RawCandidate
		duplicates int
		errs       []string
		seen       = map[string]struct{}{}
	)
	for _, c := range candidates {
		if _, inRun := seen[c.SourceID]; inRun {
			duplicates++
			continue
		}
		seen[c.SourceID] = struct{}{}

		stored, err := o.repo.HasSourceID(ctx, c.SourceID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("dedup %s: %v", c.SourceID, err))
			continue
		}
		if stored {
			duplicates++
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh, duplicates, errs
}

// processCandidate walks one candidate through every stage and persists the
// resulting story. The returned score is meaningful for published and
// quality-rejected candidates.
func (o *Orchestrator) processCandidate(ctx context.Context, c domain.RawCandidate) (domain.Story, domain.QualityScore, error) {
	state := domain.StateFetched

	rewritten, err := o.rewriteStage(ctx, c)
	if err != nil {
		return domain.Story{}, domain.QualityScore{}, o.stageErr(c, state, err)
	}
	state = o.advance(c, domain.StateRewritten)

	category := o.classifyStage(ctx, c, rewritten.Content)
	state = o.advance(c, domain.StateClassified)

	story := domain.Story{
		Slug:        rewritten.Slug,
		Title:       rewritten.Title,
		Excerpt:     rewritten.Excerpt,
		Content:     rewritten.Content,
		Author:      authorOr(c.Author),
		Category:    category,
		Country:     c.Country,
		Tags:        c.Tags,
		PublishedAt: publishedOr(c.PublishedAt),
		SourceID:    c.SourceID,
	}

	if assignment, err := o.assignImage(ctx, story); err != nil {
		o.logger.Warn("image assignment failed", "slug", story.Slug, "err", err)
	} else if assignment != nil {
		story.ImageURL = assignment.ImageURL
		story.Photographer = assignment.Photographer
	}
	state = o.advance(c, domain.StateImageAssigned)

	score, reasons := o.scorer.Gate(ctx, story)
	if len(reasons) > 0 {
		state = o.advance(c, domain.StateRejected)
		return story, score, fmt.Errorf("%w: %s (%s): %s",
			domain.ErrQualityGateFailed, story.Slug, state, strings.Join(reasons, "; "))
	}
	state = o.advance(c, domain.StateScored)

	if err := o.persistStory(ctx, &story); err != nil {
		return story, score, o.stageErr(c, state, err)
	}

	state = o.advance(c, domain.StatePublished)
	o.logger.Info("story published", "slug", story.Slug, "state", state, "score", score.Score)
	return story, score, nil
}

func (o *Orchestrator) rewriteStage(ctx context.Context, c domain.RawCandidate) (*domain.RewrittenStory, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()

	return o.rewriter.Rewrite(ctx, c.Title, c.Content, rewrite.Options{
		Category:         c.Category,
		PreserveTags:     true,
		MaintainTone:     true,
		FallbackOriginal: !o.opts.RewriteStrict,
	})
}

// classifyStage asks the classifier for a category and keeps the feed's own
// category when classification is unavailable or fails.
func (o *Orchestrator) classifyStage(ctx context.Context, c domain.RawCandidate, content string) string {
	if o.classer == nil {
		return c.Category
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()

	category, err := o.classer.Classify(ctx, content)
	if err != nil {
		o.logger.Warn("classification failed", "title", c.Title, "err", err)
		return c.Category
	}
	return category
}

// assignImage searches the provider and claims the first image not yet used
// in this run. A nil assignment with nil error means no image was available.
func (o *Orchestrator) assignImage(ctx context.Context, story domain.Story) (*domain.ImageAssignment, error) {
	if o.imgsrc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()

	query := imageQuery(story)
	results, err := o.imgsrc.Search(ctx, query, 10)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	for _, result := range results {
		if !o.registry.TryMark(result.ImageURL) {
			continue
		}
		if err := o.imgsrc.TrackDownload(ctx, result.ImageURL); err != nil {
			o.logger.Warn("download tracking failed", "image", result.ImageURL, "err", err)
		}
		return &result, nil
	}
	return nil, nil
}

// persistStory inserts with a slug made unique against the current slug set,
// retrying when a concurrent insert claims the same slug first.
func (o *Orchestrator) persistStory(ctx context.Context, story *domain.Story) error {
	// Every collision means another insert won the slug in the window
	// between Slugs and AddStory, so attempts are bounded by run size.
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		existing, err := o.repo.Slugs(ctx)
		if err != nil {
			return fmt.Errorf("load slugs: %w", err)
		}
		story.Slug = slug.EnsureUnique(story.Slug, existing)

		err = o.repo.AddStory(ctx, *story)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateSlug) {
			return err
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", domain.ErrDuplicateSlug, story.Slug, maxAttempts)
}

func (o *Orchestrator) stageErr(c domain.RawCandidate, state domain.CandidateState, err error) error {
	return fmt.Errorf("candidate %q at %s: %w", c.Title, state, err)
}

func (o *Orchestrator) advance(c domain.RawCandidate, state domain.CandidateState) domain.CandidateState {
	o.logger.Debug("candidate advanced", "title", c.Title, "state", state)
	return state
}

func (o *Orchestrator) recordRun(report *domain.RunReport) {
	o.mu.Lock()
	o.stats.Runs++
	o.stats.StoriesIngested += report.StoriesIngested
	o.stats.StoriesRejected += report.StoriesRejected
	o.stats.Duplicates += report.Duplicates
	o.stats.Errors += len(report.Errors)
	o.stats.LastRunAt = report.FinishedAt
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RunsTotal.Inc()
		o.metrics.RunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
}

func (o *Orchestrator) observe(outcome string, score float64) {
	if o.metrics == nil {
		return
	}
	o.metrics.CandidatesTotal.WithLabelValues(outcome).Inc()
	o.metrics.QualityScore.Observe(score)
}

func (o *Orchestrator) count(outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.CandidatesTotal.WithLabelValues(outcome).Inc()
}

func imageQuery(story domain.Story) string {
	parts := []string{}
	if story.Country != "" {
		parts = append(parts, story.Country)
	}
	if story.Category != "" {
		parts = append(parts, story.Category)
	}
	parts = append(parts, "travel")
	return strings.Join(parts, " ")
}

func authorOr(author string) string {
	if author == "" {
		return "Global Travel Report Editorial Team"
	}
	return author
}

func publishedOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
