package ports

import (
	"context"
	"time"

	"TravelReport/internal/domain"
)

// FeedSource pulls raw story candidates from upstream feeds. Per-feed and
// per-item failures are returned alongside partial results, never instead of
// them.
type FeedSource interface {
	FetchCandidates(ctx context.Context) ([]domain.RawCandidate, []error)
}

// StoryRepository owns the canonical story and submission collections.
// Implementations must make the slug check-and-insert a single atomic
// operation, treat submission ids as write-once, and allow each submission
// to leave pending exactly once.
type StoryRepository interface {
	AddStory(ctx context.Context, story domain.Story) error
	GetStoryBySlug(ctx context.Context, slug string) (domain.Story, error)
	GetStoryByID(ctx context.Context, id string) (domain.Story, error)
	UpdateStory(ctx context.Context, id string, mutate func(*domain.Story)) (domain.Story, error)
	DeleteStory(ctx context.Context, id string) error
	ListStories(ctx context.Context, filter domain.ListFilter) ([]domain.Story, error)
	SearchStories(ctx context.Context, query string) ([]domain.Story, error)
	Slugs(ctx context.Context) (map[string]struct{}, error)
	HasSourceID(ctx context.Context, sourceID string) (bool, error)

	StoreSubmission(ctx context.Context, sub domain.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (domain.Submission, error)
	ListSubmissions(ctx context.Context, status domain.SubmissionStatus) ([]domain.Submission, error)
	SubmissionStats(ctx context.Context) (domain.SubmissionStats, error)
	ApproveSubmissionToStory(ctx context.Context, id string, overrides domain.Story) (domain.Story, error)
	RejectSubmission(ctx context.Context, id, reviewer, reason string) (domain.Submission, error)
}

// ChatCompleter sends one prompt pair to a generative text capability.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Classifier assigns a category to free text.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// ImageSource searches a stock image provider and acknowledges downloads.
type ImageSource interface {
	Search(ctx context.Context, query string, limit int) ([]domain.ImageAssignment, error)
	TrackDownload(ctx context.Context, imageURL string) error
}

// Scheduler controls when automation runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
