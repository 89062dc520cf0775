package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"TravelReport/internal/domain"
	"TravelReport/internal/images"
	"TravelReport/internal/ports"
)

// ApprovalOverrides carries the reviewer's edits applied during approval.
type ApprovalOverrides struct {
	Reviewer    string
	Category    string
	Country     string
	Featured    bool
	EditorsPick bool
}

// SubmissionService handles reader submission intake and review. Approval
// assigns a non-duplicate image before the repository commits the story;
// submitted text is published as written, without the rewrite step.
type SubmissionService struct {
	repo   ports.StoryRepository
	imgsrc ports.ImageSource
	logger *slog.Logger
}

// NewSubmissionService wires the review workflow. The image source may be
// nil; approved stories then publish without an image.
func NewSubmissionService(repo ports.StoryRepository, imgsrc ports.ImageSource, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		repo:   repo,
		imgsrc: imgsrc,
		logger: logger,
	}
}

// Submit validates and stores a new pending submission.
func (s *SubmissionService) Submit(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	if strings.TrimSpace(sub.Title) == "" {
		return domain.Submission{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if strings.TrimSpace(sub.Content) == "" {
		return domain.Submission{}, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	if sub.Email != "" {
		if _, err := mail.ParseAddress(sub.Email); err != nil {
			return domain.Submission{}, fmt.Errorf("%w: invalid email", domain.ErrValidation)
		}
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.Status = domain.SubmissionPending
	if err := s.repo.StoreSubmission(ctx, sub); err != nil {
		return domain.Submission{}, err
	}

	stored, err := s.repo.GetSubmissionByID(ctx, sub.ID)
	if err != nil {
		return domain.Submission{}, err
	}
	s.logger.Info("submission received", "id", stored.ID, "title", stored.Title)
	return stored, nil
}

// Approve publishes a pending submission as a story. Image exclusions are
// scoped to the single approval; a failed approval never withholds an image
// from a later one.
func (s *SubmissionService) Approve(ctx context.Context, id string, overrides ApprovalOverrides) (domain.Story, error) {
	sub, err := s.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return domain.Story{}, err
	}
	if sub.Status != domain.SubmissionPending {
		return domain.Story{}, fmt.Errorf("submission %s is %s: %w", id, sub.Status, domain.ErrInvalidState)
	}

	storyOverrides := domain.Story{
		Author:      overrides.Reviewer,
		Category:    overrides.Category,
		Country:     overrides.Country,
		Featured:    overrides.Featured,
		EditorsPick: overrides.EditorsPick,
	}
	if assignment := s.findImage(ctx, sub, overrides); assignment != nil {
		storyOverrides.ImageURL = assignment.ImageURL
		storyOverrides.Photographer = assignment.Photographer
	}

	story, err := s.repo.ApproveSubmissionToStory(ctx, id, storyOverrides)
	if err != nil {
		return domain.Story{}, err
	}

	s.logger.Info("submission approved", "id", id, "slug", story.Slug, "reviewer", overrides.Reviewer)
	return story, nil
}

// Reject moves a pending submission to rejected with the reviewer's reason.
func (s *SubmissionService) Reject(ctx context.Context, id, reviewer, reason string) (domain.Submission, error) {
	sub, err := s.repo.RejectSubmission(ctx, id, reviewer, reason)
	if err != nil {
		return domain.Submission{}, err
	}
	s.logger.Info("submission rejected", "id", id, "reviewer", reviewer, "reason", reason)
	return sub, nil
}

func (s *SubmissionService) findImage(ctx context.Context, sub domain.Submission, overrides ApprovalOverrides) *domain.ImageAssignment {
	if s.imgsrc == nil {
		return nil
	}

	query := submissionImageQuery(sub, overrides)
	results, err := s.imgsrc.Search(ctx, query, 10)
	if err != nil {
		s.logger.Warn("image search failed", "submission", sub.ID, "err", err)
		return nil
	}

	// Registry scope is one approval; search results may repeat a URL.
	registry := images.NewDedupRegistry()
	for _, result := range results {
		if result.ImageURL == "" || !registry.TryMark(result.ImageURL) {
			continue
		}
		if err := s.imgsrc.TrackDownload(ctx, result.ImageURL); err != nil {
			s.logger.Warn("download tracking failed", "image", result.ImageURL, "err", err)
		}
		return &result
	}
	return nil
}

func submissionImageQuery(sub domain.Submission, overrides ApprovalOverrides) string {
	country := overrides.Country
	if country == "" {
		country = sub.Country
	}
	category := overrides.Category
	if category == "" {
		category = sub.Category
	}

	parts := []string{}
	if country != "" {
		parts = append(parts, country)
	}
	if category != "" {
		parts = append(parts, category)
	}
	parts = append(parts, "travel")
	return strings.Join(parts, " ")
}
