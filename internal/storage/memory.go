// Package storage provides the repository owning the canonical story and
// submission collections.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"TravelReport/internal/domain"
	"TravelReport/internal/ports"
	"TravelReport/internal/slug"
)

// MemoryRepository keeps stories and submissions in process memory. It is
// the single shared instance per deployment; every mutation runs under one
// mutex so slug check-and-insert and submission transitions stay atomic.
type MemoryRepository struct {
	mu          sync.Mutex
	stories     []domain.Story
	bySlug      map[string]int
	byID        map[string]int
	bySourceID  map[string]struct{}
	submissions map[string]*domain.Submission
	subOrder    []string
	logger      *slog.Logger
}

var _ ports.StoryRepository = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty repository.
func NewMemoryRepository(logger *slog.Logger) *MemoryRepository {
	return &MemoryRepository{
		bySlug:      map[string]int{},
		byID:        map[string]int{},
		bySourceID:  map[string]struct{}{},
		submissions: map[string]*domain.Submission{},
		logger:      logger,
	}
}

// AddStory inserts a story, preserving insertion order for listing. Inserting
// a taken slug fails with domain.ErrDuplicateSlug; a taken id is rejected as
// a validation error since ids are immutable once assigned.
func (r *MemoryRepository) AddStory(_ context.Context, story domain.Story) error {
	if story.Slug == "" || story.Title == "" {
		return fmt.Errorf("%w: story requires slug and title", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.bySlug[story.Slug]; taken {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSlug, story.Slug)
	}
	if story.ID == "" {
		story.ID = uuid.NewString()
	}
	if _, taken := r.byID[story.ID]; taken {
		return fmt.Errorf("%w: story id %s already assigned", domain.ErrValidation, story.ID)
	}

	r.stories = append(r.stories, story)
	idx := len(r.stories) - 1
	r.bySlug[story.Slug] = idx
	r.byID[story.ID] = idx
	if story.SourceID != "" {
		r.bySourceID[story.SourceID] = struct{}{}
	}

	r.debug("story added", "slug", story.Slug, "id", story.ID)
	return nil
}

// GetStoryBySlug returns the stored story or domain.ErrNotFound.
func (r *MemoryRepository) GetStoryBySlug(_ context.Context, s string) (domain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.bySlug[s]
	if !ok {
		return domain.Story{}, fmt.Errorf("story %s: %w", s, domain.ErrNotFound)
	}
	return cloneStory(r.stories[idx]), nil
}

// GetStoryByID returns the stored story or domain.ErrNotFound.
func (r *MemoryRepository) GetStoryByID(_ context.Context, id string) (domain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return domain.Story{}, fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
	}
	return cloneStory(r.stories[idx]), nil
}

// UpdateStory applies mutate under the repository lock. The id and slug stay
// fixed; mutate sees a copy and its slug/id edits are discarded.
func (r *MemoryRepository) UpdateStory(_ context.Context, id string, mutate func(*domain.Story)) (domain.Story, error) {
	if mutate == nil {
		return domain.Story{}, fmt.Errorf("%w: nil mutation", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return domain.Story{}, fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
	}

	updated := cloneStory(r.stories[idx])
	mutate(&updated)
	updated.ID = r.stories[idx].ID
	updated.Slug = r.stories[idx].Slug
	r.stories[idx] = updated

	return cloneStory(updated), nil
}

// DeleteStory removes the story and releases its slug.
func (r *MemoryRepository) DeleteStory(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("story %s: %w", id, domain.ErrNotFound)
	}

	removed := r.stories[idx]
	r.stories = append(r.stories[:idx], r.stories[idx+1:]...)
	delete(r.bySlug, removed.Slug)
	delete(r.byID, removed.ID)
	r.reindexLocked()

	r.debug("story deleted", "slug", removed.Slug)
	return nil
}

// ListStories returns stories matching the filter in insertion order.
func (r *MemoryRepository) ListStories(_ context.Context, filter domain.ListFilter) ([]domain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Story
	for _, story := range r.stories {
		if matchesFilter(story, filter) {
			out = append(out, cloneStory(story))
		}
	}
	return out, nil
}

// SearchStories matches the query against title, content, excerpt, category,
// country, and tags, case-insensitively.
func (r *MemoryRepository) SearchStories(_ context.Context, query string) ([]domain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		out := make([]domain.Story, 0, len(r.stories))
		for _, story := range r.stories {
			out = append(out, cloneStory(story))
		}
		return out, nil
	}

	var out []domain.Story
	for _, story := range r.stories {
		if storyMatchesQuery(story, q) {
			out = append(out, cloneStory(story))
		}
	}
	return out, nil
}

// Slugs returns the set of slugs currently in use.
func (r *MemoryRepository) Slugs(_ context.Context) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]struct{}, len(r.bySlug))
	for s := range r.bySlug {
		out[s] = struct{}{}
	}
	return out, nil
}

// HasSourceID reports whether a story from this source identifier was
// already ingested.
func (r *MemoryRepository) HasSourceID(_ context.Context, sourceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.bySourceID[sourceID]
	return ok, nil
}

// StoreSubmission records a new pending submission. Submission ids are
// write-once; re-storing a known id fails with domain.ErrValidation so a
// terminal submission can never be flipped back to pending.
func (r *MemoryRepository) StoreSubmission(_ context.Context, sub domain.Submission) error {
	if sub.Title == "" || sub.Content == "" {
		return fmt.Errorf("%w: submission requires title and content", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if _, exists := r.submissions[sub.ID]; exists {
		return fmt.Errorf("%w: submission id %s already stored", domain.ErrValidation, sub.ID)
	}
	if sub.Status == "" {
		sub.Status = domain.SubmissionPending
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	r.subOrder = append(r.subOrder, sub.ID)
	stored := sub
	r.submissions[sub.ID] = &stored

	r.debug("submission stored", "id", sub.ID, "title", sub.Title)
	return nil
}

// GetSubmissionByID returns the submission or domain.ErrNotFound.
func (r *MemoryRepository) GetSubmissionByID(_ context.Context, id string) (domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.submissions[id]
	if !ok {
		return domain.Submission{}, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
	}
	return cloneSubmission(*sub), nil
}

// ListSubmissions returns submissions in intake order, optionally filtered
// by status.
func (r *MemoryRepository) ListSubmissions(_ context.Context, status domain.SubmissionStatus) ([]domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Submission
	for _, id := range r.subOrder {
		sub := r.submissions[id]
		if status == "" || sub.Status == status {
			out = append(out, cloneSubmission(*sub))
		}
	}
	return out, nil
}

// SubmissionStats summarizes the submission queue.
func (r *MemoryRepository) SubmissionStats(_ context.Context) (domain.SubmissionStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := domain.SubmissionStats{Total: len(r.submissions)}
	for _, sub := range r.submissions {
		switch sub.Status {
		case domain.SubmissionPending:
			stats.Pending++
		case domain.SubmissionApproved:
			stats.Approved++
		case domain.SubmissionRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

// ApproveSubmissionToStory builds a story from a pending submission plus
// overrides, persists it with a unique slug, and marks the submission
// approved with its story id, all under one lock. A second concurrent
// approval of the same id fails with domain.ErrInvalidState and never
// creates a second story.
func (r *MemoryRepository) ApproveSubmissionToStory(_ context.Context, id string, overrides domain.Story) (domain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.submissions[id]
	if !ok {
		return domain.Story{}, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
	}
	if sub.Status != domain.SubmissionPending {
		return domain.Story{}, fmt.Errorf("submission %s is %s: %w", id, sub.Status, domain.ErrInvalidState)
	}

	existing := make(map[string]struct{}, len(r.bySlug))
	for s := range r.bySlug {
		existing[s] = struct{}{}
	}

	story := domain.Story{
		ID:          uuid.NewString(),
		Slug:        slug.EnsureUnique(slug.Generate(sub.Title), existing),
		Title:       sub.Title,
		Excerpt:     domain.Excerpt(sub.Content, domain.ExcerptLength),
		Content:     sub.Content,
		Author:      sub.Name,
		Category:    sub.Category,
		Country:     sub.Country,
		Tags:        append([]string(nil), sub.Tags...),
		PublishedAt: time.Now().UTC(),
	}
	applyOverrides(&story, overrides)

	r.stories = append(r.stories, story)
	idx := len(r.stories) - 1
	r.bySlug[story.Slug] = idx
	r.byID[story.ID] = idx

	now := time.Now().UTC()
	sub.Status = domain.SubmissionApproved
	sub.ApprovedStoryID = story.ID
	sub.ReviewedAt = now
	if overrides.Author != "" {
		sub.ReviewedBy = overrides.Author
	}

	r.debug("submission approved", "id", id, "story", story.Slug)
	return cloneStory(story), nil
}

// RejectSubmission moves a pending submission to rejected. Like approval,
// the transition happens at most once.
func (r *MemoryRepository) RejectSubmission(_ context.Context, id, reviewer, reason string) (domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.submissions[id]
	if !ok {
		return domain.Submission{}, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
	}
	if sub.Status != domain.SubmissionPending {
		return domain.Submission{}, fmt.Errorf("submission %s is %s: %w", id, sub.Status, domain.ErrInvalidState)
	}

	sub.Status = domain.SubmissionRejected
	sub.ReviewedAt = time.Now().UTC()
	sub.ReviewedBy = reviewer
	sub.RejectionReason = reason

	r.debug("submission rejected", "id", id, "reason", reason)
	return cloneSubmission(*sub), nil
}

func (r *MemoryRepository) reindexLocked() {
	r.bySlug = make(map[string]int, len(r.stories))
	r.byID = make(map[string]int, len(r.stories))
	for i, story := range r.stories {
		r.bySlug[story.Slug] = i
		r.byID[story.ID] = i
	}
}

func (r *MemoryRepository) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func matchesFilter(story domain.Story, f domain.ListFilter) bool {
	if f.Category != "" && !strings.EqualFold(story.Category, f.Category) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(story.Country, f.Country) {
		return false
	}
	if f.Author != "" && !strings.EqualFold(story.Author, f.Author) {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, tag := range story.Tags {
			if strings.EqualFold(tag, f.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Featured != nil && story.Featured != *f.Featured {
		return false
	}
	if f.EditorsPick != nil && story.EditorsPick != *f.EditorsPick {
		return false
	}
	if !f.Since.IsZero() && story.PublishedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && story.PublishedAt.After(f.Until) {
		return false
	}
	return true
}

func storyMatchesQuery(story domain.Story, q string) bool {
	fields := []string{story.Title, story.Content, story.Excerpt, story.Category, story.Country}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for _, tag := range story.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func applyOverrides(story *domain.Story, o domain.Story) {
	if o.ImageURL != "" {
		story.ImageURL = o.ImageURL
		story.Photographer = o.Photographer
	}
	if o.Category != "" {
		story.Category = o.Category
	}
	if o.Country != "" {
		story.Country = o.Country
	}
	story.Featured = o.Featured
	story.EditorsPick = o.EditorsPick
}

func cloneStory(s domain.Story) domain.Story {
	s.Tags = append([]string(nil), s.Tags...)
	return s
}

func cloneSubmission(s domain.Submission) domain.Submission {
	s.Tags = append([]string(nil), s.Tags...)
	return s
}
