package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"TravelReport/internal/domain"
	"TravelReport/internal/usecase"
)

type storyResponse struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Excerpt      string    `json:"excerpt"`
	Content      string    `json:"content,omitempty"`
	Author       string    `json:"author"`
	Category     string    `json:"category"`
	Country      string    `json:"country,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Featured     bool      `json:"featured"`
	EditorsPick  bool      `json:"editorsPick"`
	PublishedAt  time.Time `json:"publishedAt"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Photographer struct {
		Name       string `json:"name,omitempty"`
		ProfileURL string `json:"profileUrl,omitempty"`
	} `json:"photographer,omitempty"`
}

func toStoryResponse(story domain.Story, includeContent bool) storyResponse {
	resp := storyResponse{
		ID:          story.ID,
		Slug:        story.Slug,
		Title:       story.Title,
		Excerpt:     story.Excerpt,
		Author:      story.Author,
		Category:    story.Category,
		Country:     story.Country,
		Tags:        story.Tags,
		Featured:    story.Featured,
		EditorsPick: story.EditorsPick,
		PublishedAt: story.PublishedAt,
		ImageURL:    story.ImageURL,
	}
	if includeContent {
		resp.Content = story.Content
	}
	resp.Photographer.Name = story.Photographer.Name
	resp.Photographer.ProfileURL = story.Photographer.ProfileURL
	return resp
}

type submissionResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	ApprovedStoryID string    `json:"approvedStoryId,omitempty"`
}

func toSubmissionResponse(sub domain.Submission) submissionResponse {
	return submissionResponse{
		ID:              sub.ID,
		Title:           sub.Title,
		Status:          string(sub.Status),
		CreatedAt:       sub.CreatedAt,
		RejectionReason: sub.RejectionReason,
		ApprovedStoryID: sub.ApprovedStoryID,
	}
}

// handleIngest runs the pipeline synchronously. Partial failure is still a
// 200; per-candidate errors ride along in the report body.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) error {
	report, err := s.ingestor.IngestContent(r.Context())
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, report)
	return nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) error {
	submissionStats, err := s.repo.SubmissionStats(r.Context())
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ingest":      s.ingestor.Stats(),
		"submissions": submissionStats,
	})
	return nil
}

type submitRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Country  string   `json:"country"`
	Tags     []string `json:"tags"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) error {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	stored, err := s.reviewer.Submit(r.Context(), domain.Submission{
		Name:     req.Name,
		Email:    req.Email,
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Country:  req.Country,
		Tags:     req.Tags,
	})
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusCreated, toSubmissionResponse(stored))
	return nil
}

type approveRequest struct {
	Reviewer    string `json:"reviewer"`
	Category    string `json:"category"`
	Country     string `json:"country"`
	Featured    bool   `json:"featured"`
	EditorsPick bool   `json:"editorsPick"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) error {
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	story, err := s.reviewer.Approve(r.Context(), chi.URLParam(r, "id"), usecase.ApprovalOverrides{
		Reviewer:    req.Reviewer,
		Category:    req.Category,
		Country:     req.Country,
		Featured:    req.Featured,
		EditorsPick: req.EditorsPick,
	})
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, toStoryResponse(story, true))
	return nil
}

type rejectRequest struct {
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) error {
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	sub, err := s.reviewer.Reject(r.Context(), chi.URLParam(r, "id"), req.Reviewer, req.Reason)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, toSubmissionResponse(sub))
	return nil
}

// handleListStories lists published stories. ?q= switches to full-text
// search; the remaining query parameters filter the listing.
func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	var (
		stories []domain.Story
		err     error
	)
	if search := q.Get("q"); search != "" {
		stories, err = s.repo.SearchStories(r.Context(), search)
	} else {
		filter := domain.ListFilter{
			Category: q.Get("category"),
			Country:  q.Get("country"),
			Tag:      q.Get("tag"),
			Author:   q.Get("author"),
		}
		if v := q.Get("featured"); v != "" {
			parsed, parseErr := strconv.ParseBool(v)
			if parseErr != nil {
				return fmt.Errorf("%w: featured must be a boolean", domain.ErrValidation)
			}
			filter.Featured = &parsed
		}
		if v := q.Get("editorsPick"); v != "" {
			parsed, parseErr := strconv.ParseBool(v)
			if parseErr != nil {
				return fmt.Errorf("%w: editorsPick must be a boolean", domain.ErrValidation)
			}
			filter.EditorsPick = &parsed
		}
		stories, err = s.repo.ListStories(r.Context(), filter)
	}
	if err != nil {
		return err
	}

	out := make([]storyResponse, 0, len(stories))
	for _, story := range stories {
		out = append(out, toStoryResponse(story, false))
	}
	respondJSON(w, http.StatusOK, map[string]any{"stories": out, "total": len(out)})
	return nil
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) error {
	story, err := s.repo.GetStoryBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, toStoryResponse(story, true))
	return nil
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return nil
}
