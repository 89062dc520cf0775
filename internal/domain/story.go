package domain

import "time"

// Story is the canonical published article shape shared by every component.
type Story struct {
	ID           string
	Slug         string
	Title        string
	Excerpt      string
	Content      string
	Author       string
	Category     string
	Country      string
	Tags         []string
	Featured     bool
	EditorsPick  bool
	PublishedAt  time.Time
	ImageURL     string
	Photographer Photographer
	SourceID     string
}

// Photographer carries image attribution required by the image provider.
type Photographer struct {
	Name       string
	ProfileURL string
}

// SubmissionStatus enumerates the submission lifecycle.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Submission is a reader-contributed story candidate awaiting review.
// Once it leaves pending it is terminal.
type Submission struct {
	ID              string
	Name            string
	Email           string
	Title           string
	Content         string
	Category        string
	Country         string
	Tags            []string
	Status          SubmissionStatus
	CreatedAt       time.Time
	ReviewedAt      time.Time
	ReviewedBy      string
	RejectionReason string
	ApprovedStoryID string
}

// RawCandidate is a normalized feed item before any processing.
type RawCandidate struct {
	SourceID    string
	Title       string
	Content     string
	Author      string
	Category    string
	Country     string
	Tags        []string
	FeedName    string
	PublishedAt time.Time
}

// RewrittenStory is the output of the content rewrite step.
type RewrittenStory struct {
	Title    string
	Excerpt  string
	Content  string
	Slug     string
	Fallback bool
}

// QualityScore is produced fresh per scoring call and never mutated.
type QualityScore struct {
	Score       float64
	Breakdown   map[string]float64
	Suggestions []string
}

// ImageAssignment binds one image to one story within a run.
type ImageAssignment struct {
	ImageURL     string
	Photographer Photographer
}

// CandidateState enumerates the per-candidate pipeline milestones.
type CandidateState string

const (
	StateFetched       CandidateState = "fetched"
	StateRewritten     CandidateState = "rewritten"
	StateClassified    CandidateState = "classified"
	StateImageAssigned CandidateState = "image_assigned"
	StateScored        CandidateState = "scored"
	StatePublished     CandidateState = "published"
	StateRejected      CandidateState = "rejected"
)

// RunReport aggregates the outcome of one orchestrator invocation.
type RunReport struct {
	StoriesIngested int
	StoriesRejected int
	Duplicates      int
	Errors          []string
	QualityReport   map[string]QualityScore
	StartedAt       time.Time
	FinishedAt      time.Time
}

// SubmissionStats summarizes the submission queue.
type SubmissionStats struct {
	Total    int
	Pending  int
	Approved int
	Rejected int
}

// ListFilter narrows story listing without mutating the collection.
type ListFilter struct {
	Category    string
	Country     string
	Tag         string
	Author      string
	Featured    *bool
	EditorsPick *bool
	Since       time.Time
	Until       time.Time
}
