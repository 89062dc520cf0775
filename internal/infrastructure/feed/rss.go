// Package feed pulls travel story candidates from configured RSS feeds.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"

	"TravelReport/internal/config"
	"TravelReport/internal/domain"
	"TravelReport/internal/ports"
)

const maxBodyBytes = 4 << 20

// rssEnvelope models the subset of RSS 2.0 the ingestor reads.
type rssEnvelope struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	Description string   `xml:"description"`
	Content     string   `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	Creator     string   `xml:"http://purl.org/dc/elements/1.1/ creator"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
}

// RSSIngestor fetches every enabled feed and normalizes items into raw
// candidates. One broken feed or item never aborts the rest; each failure
// becomes one entry in the returned error slice.
type RSSIngestor struct {
	client    *http.Client
	feeds     []config.FeedConfig
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

var _ ports.FeedSource = (*RSSIngestor)(nil)

// NewRSSIngestor wires an HTTP client; a nil client gets a 20s timeout.
func NewRSSIngestor(client *http.Client, feeds []config.FeedConfig, logger *slog.Logger) *RSSIngestor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &RSSIngestor{
		client:    client,
		feeds:     feeds,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger,
	}
}

// FetchCandidates walks every enabled feed sequentially and returns the
// candidates it could normalize plus one error per feed or item that failed.
func (r *RSSIngestor) FetchCandidates(ctx context.Context) ([]domain.RawCandidate, []error) {
	var (
		candidates []domain.RawCandidate
		failures   []error
	)

	for _, fc := range r.feeds {
		if !fc.Enabled {
			continue
		}
		items, errs := r.fetchFeed(ctx, fc)
		candidates = append(candidates, items...)
		failures = append(failures, errs...)
	}

	return candidates, failures
}

func (r *RSSIngestor) fetchFeed(ctx context.Context, fc config.FeedConfig) ([]domain.RawCandidate, []error) {
	envelope, err := r.fetchEnvelope(ctx, fc.URL)
	if err != nil {
		return nil, []error{fmt.Errorf("%w: feed %s: %v", domain.ErrUpstreamFetch, fc.Name, err)}
	}

	var (
		out  []domain.RawCandidate
		errs []error
	)
	for _, item := range envelope.Channel.Items {
		candidate, err := r.normalizeItem(item, fc)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s item %q: %w", fc.Name, item.Title, err))
			continue
		}
		out = append(out, candidate)
	}

	if r.logger != nil {
		r.logger.Debug("feed fetched", "feed", fc.Name, "items", len(out), "failed", len(errs))
	}
	return out, errs
}

func (r *RSSIngestor) fetchEnvelope(ctx context.Context, feedURL string) (*rssEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TravelReport/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var envelope rssEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return &envelope, nil
}

func (r *RSSIngestor) normalizeItem(item rssItem, fc config.FeedConfig) (domain.RawCandidate, error) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return domain.RawCandidate{}, fmt.Errorf("%w: missing title", domain.ErrValidation)
	}

	raw := item.Content
	if strings.TrimSpace(raw) == "" {
		raw = item.Description
	}
	content := r.extractText(raw)
	if content == "" {
		return domain.RawCandidate{}, fmt.Errorf("%w: empty body", domain.ErrValidation)
	}

	sourceID := strings.TrimSpace(item.GUID)
	if sourceID == "" {
		sourceID = strings.TrimSpace(item.Link)
	}
	if sourceID == "" {
		return domain.RawCandidate{}, fmt.Errorf("%w: no guid or link", domain.ErrValidation)
	}

	publishedAt := time.Now().UTC()
	if strings.TrimSpace(item.PubDate) != "" {
		parsed, err := dateparse.ParseAny(item.PubDate)
		if err != nil {
			return domain.RawCandidate{}, fmt.Errorf("parse pubDate %q: %w", item.PubDate, err)
		}
		publishedAt = parsed.UTC()
	}

	category := fc.Category
	if category == "" {
		category = inferCategory(title + " " + content)
	}

	tags := normalizeTags(item.Categories)
	return domain.RawCandidate{
		SourceID:    sourceID,
		Title:       title,
		Content:     content,
		Author:      strings.TrimSpace(item.Creator),
		Category:    category,
		Country:     inferCountry(title + " " + content),
		Tags:        tags,
		FeedName:    fc.Name,
		PublishedAt: publishedAt,
	}, nil
}

// extractText sanitizes the markup and flattens what remains to plain
// paragraphs. Feeds ship story bodies as HTML fragments.
func (r *RSSIngestor) extractText(raw string) string {
	clean := r.sanitizer.Sanitize(raw)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return strings.TrimSpace(clean)
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}

	return strings.TrimSpace(doc.Text())
}

func normalizeTags(categories []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range categories {
		tag := strings.ToLower(strings.TrimSpace(c))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// knownCountries is the lookup used to tag candidates with a destination.
// First match in text order wins.
var knownCountries = []string{
	"Australia", "Austria", "Brazil", "Canada", "Chile", "China", "Croatia",
	"Egypt", "France", "Germany", "Greece", "Iceland", "India", "Indonesia",
	"Ireland", "Italy", "Japan", "Kenya", "Mexico", "Morocco", "Netherlands",
	"New Zealand", "Norway", "Peru", "Philippines", "Portugal", "Scotland",
	"South Africa", "Spain", "Switzerland", "Thailand", "Turkey",
	"United Kingdom", "United States", "Vietnam",
}

// categoryKeywords maps body keywords to a category when the feed config
// supplies none. First matching category in declaration order wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"Cruises", []string{"cruise", "ship", "port of call", "sailing"}},
	{"Adventure", []string{"hike", "hiking", "trek", "kayak", "climbing", "safari"}},
	{"Food & Dining", []string{"restaurant", "cuisine", "food", "dining", "chef"}},
	{"Luxury", []string{"luxury", "five-star", "premium", "exclusive"}},
	{"Budget Travel", []string{"budget", "cheap", "affordable", "backpack"}},
	{"Family", []string{"family", "kids", "children"}},
	{"Nature", []string{"wildlife", "national park", "nature", "beach"}},
	{"City Guide", []string{"city guide", "neighbourhood", "neighborhood", "downtown"}},
	{"Culture", []string{"museum", "culture", "heritage", "festival", "temple"}},
}

func inferCategory(text string) string {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, word := range ck.words {
			if strings.Contains(lower, word) {
				return ck.category
			}
		}
	}
	return ""
}

func inferCountry(text string) string {
	lower := strings.ToLower(text)
	for _, country := range knownCountries {
		if strings.Contains(lower, strings.ToLower(country)) {
			return country
		}
	}
	return ""
}
