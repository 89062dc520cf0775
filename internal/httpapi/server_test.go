package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TravelReport/internal/domain"
	"TravelReport/internal/metrics"
	"TravelReport/internal/storage"
	"TravelReport/internal/usecase"
)

type stubIngestor struct {
	report *domain.RunReport
	stats  usecase.Stats
}

func (s *stubIngestor) IngestContent(_ context.Context) (*domain.RunReport, error) {
	return s.report, nil
}

func (s *stubIngestor) Stats() usecase.Stats {
	return s.stats
}

func newTestServer(t *testing.T, repo *storage.MemoryRepository, ingestor Ingestor) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reviewer := usecase.NewSubmissionService(repo, nil, logger)
	srv := httptest.NewServer(NewServer(ingestor, reviewer, repo, metrics.New(), logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func seedStory(t *testing.T, repo *storage.MemoryRepository, slug, category string) {
	t.Helper()
	err := repo.AddStory(context.Background(), domain.Story{
		Slug:        slug,
		Title:       "Story " + slug,
		Excerpt:     "Excerpt.",
		Content:     "Body.",
		Author:      "Editorial Team",
		Category:    category,
		Country:     "Japan",
		Tags:        []string{"japan"},
		PublishedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed story: %v", err)
	}
}

func TestIngestEndpointReturnsReport(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository(nil)
	ingestor := &stubIngestor{report: &domain.RunReport{
		StoriesIngested: 2,
		Errors:          []string{"feed broken: connection refused"},
	}}
	srv := newTestServer(t, repo, ingestor)

	resp := postJSON(t, srv.URL+"/api/automation/ingest", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for partial success, got %d", resp.StatusCode)
	}

	var report domain.RunReport
	decodeBody(t, resp, &report)
	if report.StoriesIngested != 2 || len(report.Errors) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository(nil)
	srv := newTestServer(t, repo, &stubIngestor{stats: usecase.Stats{Runs: 3, StoriesIngested: 7}})

	resp, err := http.Get(srv.URL + "/api/automation/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Ingest usecase.Stats `json:"ingest"`
	}
	decodeBody(t, resp, &body)
	if body.Ingest.Runs != 3 || body.Ingest.StoriesIngested != 7 {
		t.Fatalf("unexpected stats: %+v", body.Ingest)
	}
}

func TestSubmissionRoundTrip(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository(nil)
	srv := newTestServer(t, repo, &stubIngestor{report: &domain.RunReport{}})

	resp := postJSON(t, srv.URL+"/api/submissions", map[string]any{
		"name":    "Mia",
		"email":   "mia@example.com",
		"title":   "Backpacking the Balkans",
		"content": "Three weeks, five countries.",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created submissionResponse
	decodeBody(t, resp, &created)
	if created.ID == "" || created.Status != "pending" {
		t.Fatalf("unexpected created submission: %+v", created)
	}

	resp = postJSON(t, srv.URL+"/api/submissions/"+created.ID+"/approve", map[string]any{
		"reviewer": "editor",
		"featured": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on approve, got %d", resp.StatusCode)
	}
	var story storyResponse
	decodeBody(t, resp, &story)
	if story.Slug != "backpacking-the-balkans" || !story.Featured {
		t.Fatalf("unexpected approved story: %+v", story)
	}

	resp = postJSON(t, srv.URL+"/api/submissions/"+created.ID+"/approve", map[string]any{
		"reviewer": "editor",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second approve should 409, got %d", resp.StatusCode)
	}
}

func TestRejectEndpoint(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository(nil)
	srv := newTestServer(t, repo, &stubIngestor{})

	resp := postJSON(t, srv.URL+"/api/submissions", map[string]any{
		"title":   "Vegas Buffets Ranked",
		"content": "Mostly about the shrimp.",
	})
	var created submissionResponse
	decodeBody(t, resp, &created)

	resp = postJSON(t, srv.URL+"/api/submissions/"+created.ID+"/reject", map[string]any{
		"reviewer": "editor",
		"reason":   "off brand",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on reject, got %d", resp.StatusCode)
	}
	var rejected submissionResponse
	decodeBody(t, resp, &rejected)
	if rejected.Status != "rejected" || rejected.RejectionReason != "off brand" {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}
}

func TestSubmitValidationReturns400(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository(nil)
	srv := newTestServer(t, repo, &stubIngestor{})

	resp := postJSON(t, srv.URL+"/api/submissions", map[string]any{"title": "no content"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListAndGetStories(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository(nil)
	seedStory(t, repo, "tokyo-street-food", "Food")
	seedStory(t, repo, "rome-on-foot", "Culture")
	srv := newTestServer(t, repo, &stubIngestor{})

	resp, err := http.Get(srv.URL + "/api/stories?category=Food")
	if err != nil {
		t.Fatalf("GET stories: %v", err)
	}
	var listing struct {
		Stories []storyResponse `json:"stories"`
		Total   int             `json:"total"`
	}
	decodeBody(t, resp, &listing)
	if listing.Total != 1 || listing.Stories[0].Slug != "tokyo-street-food" {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if listing.Stories[0].Content != "" {
		t.Fatal("listing should omit content")
	}

	resp, err = http.Get(srv.URL + "/api/stories/rome-on-foot")
	if err != nil {
		t.Fatalf("GET story: %v", err)
	}
	var story storyResponse
	decodeBody(t, resp, &story)
	if story.Slug != "rome-on-foot" || story.Content == "" {
		t.Fatalf("detail should include content: %+v", story)
	}

	resp, err = http.Get(srv.URL + "/api/stories/missing-slug")
	if err != nil {
		t.Fatalf("GET missing story: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository(nil)
	srv := newTestServer(t, repo, &stubIngestor{})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	if !strings.Contains(buf.String(), "travelreport_automation_runs_total") {
		t.Fatal("expected pipeline metrics in exposition")
	}
}
