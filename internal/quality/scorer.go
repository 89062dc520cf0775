// Package quality scores stories across editorial dimensions and gates
// publish eligibility.
package quality

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/montanaflynn/stats"

	"TravelReport/internal/domain"
)

// Weights are the per-dimension contributions to the aggregate score.
type Weights struct {
	Originality float64
	Readability float64
	SEO         float64
	Accuracy    float64
	Brand       float64
}

// DefaultWeights mirror the editorial defaults.
func DefaultWeights() Weights {
	return Weights{Originality: 0.25, Readability: 0.25, SEO: 0.2, Accuracy: 0.15, Brand: 0.15}
}

var travelKeywords = []string{
	"travel", "trip", "journey", "holiday", "destination", "hotel", "resort",
	"cruise", "flight", "airport", "tour", "guide", "adventure", "explore",
	"discover", "visit", "experience",
}

var prohibitedKeywords = []string{
	"adult", "explicit", "graphic", "gambling", "violent", "offensive",
	"discriminatory",
}

const plagiarismCutoff = 0.8

// Corpus is the slice of repository behaviour the scorer reads for
// originality comparison.
type Corpus interface {
	ListStories(ctx context.Context, filter domain.ListFilter) ([]domain.Story, error)
}

// Scorer computes quality metrics against the existing story corpus.
type Scorer struct {
	repo      Corpus
	weights   Weights
	threshold float64
}

// NewScorer wires the repository used for originality comparison. threshold
// is the minimum aggregate score for publish eligibility.
func NewScorer(repo Corpus, weights Weights, threshold float64) *Scorer {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Scorer{repo: repo, weights: weights, threshold: threshold}
}

// Score computes the composite quality score. The result is created fresh
// per call and never mutated afterwards.
func (s *Scorer) Score(ctx context.Context, story domain.Story) domain.QualityScore {
	breakdown := map[string]float64{
		"originality": s.originality(ctx, story),
		"readability": readability(story.Content),
		"seo":         seo(story),
		"accuracy":    accuracy(story),
		"brand":       brand(story),
	}

	total := s.weights.Originality + s.weights.Readability + s.weights.SEO +
		s.weights.Accuracy + s.weights.Brand
	if total == 0 {
		total = 1
	}

	aggregate := (breakdown["originality"]*s.weights.Originality +
		breakdown["readability"]*s.weights.Readability +
		breakdown["seo"]*s.weights.SEO +
		breakdown["accuracy"]*s.weights.Accuracy +
		breakdown["brand"]*s.weights.Brand) / total

	return domain.QualityScore{
		Score:       clamp01(aggregate),
		Breakdown:   breakdown,
		Suggestions: s.SuggestImprovements(story),
	}
}

// Gate combines plagiarism, brand compliance, and the score threshold into
// the publish decision. Failing reasons are returned in check order.
func (s *Scorer) Gate(ctx context.Context, story domain.Story) (domain.QualityScore, []string) {
	var reasons []string

	if s.CheckPlagiarism(ctx, story) {
		reasons = append(reasons, "plagiarism check flagged content")
	}
	if !s.CheckBrandCompliance(story) {
		reasons = append(reasons, "brand compliance check failed")
	}

	score := s.Score(ctx, story)
	if score.Score < s.threshold {
		reasons = append(reasons, fmt.Sprintf("quality score %.2f below threshold %.2f", score.Score, s.threshold))
	}

	return score, reasons
}

// CheckPlagiarism reports true when the story is too similar to any stored
// story; a flagged story must not be published.
func (s *Scorer) CheckPlagiarism(ctx context.Context, story domain.Story) bool {
	return s.maxCorpusSimilarity(ctx, story) >= plagiarismCutoff
}

// CheckBrandCompliance reports false when the story violates editorial
// safety rules.
func (s *Scorer) CheckBrandCompliance(story domain.Story) bool {
	return brand(story) >= 0.5
}

// PredictPerformance estimates audience appeal in [0,1]. Advisory only; it
// never gates publication.
func (s *Scorer) PredictPerformance(story domain.Story) float64 {
	base := seo(story)*0.4 + readability(story.Content)*0.4
	if story.ImageURL != "" {
		base += 0.1
	}
	if len(story.Tags) >= 3 {
		base += 0.1
	}
	return clamp01(base)
}

// SuggestImprovements returns ordered, actionable editorial suggestions.
func (s *Scorer) SuggestImprovements(story domain.Story) []string {
	var out []string

	if len(story.Title) < 20 {
		out = append(out, "expand the headline to at least 20 characters")
	}
	if len(story.Title) > 70 {
		out = append(out, "shorten the headline to 70 characters or fewer")
	}
	if wordCount(story.Content) < 300 {
		out = append(out, "grow the body to at least 300 words")
	}
	if story.Excerpt == "" {
		out = append(out, "add an excerpt for listings and meta description")
	}
	if len(story.Tags) == 0 {
		out = append(out, "tag the story so readers can find it by topic")
	}
	if story.ImageURL == "" {
		out = append(out, "assign a hero image")
	}
	if !containsAny(strings.ToLower(story.Title+" "+story.Content), travelKeywords) {
		out = append(out, "work travel-focused keywords into the copy")
	}

	return out
}

func (s *Scorer) originality(ctx context.Context, story domain.Story) float64 {
	return clamp01(1 - s.maxCorpusSimilarity(ctx, story))
}

func (s *Scorer) maxCorpusSimilarity(ctx context.Context, story domain.Story) float64 {
	if s.repo == nil {
		return 0
	}

	existing, err := s.repo.ListStories(ctx, domain.ListFilter{})
	if err != nil {
		return 0
	}

	candidate := tokenSet(story.Title + " " + story.Content)
	var max float64
	for _, other := range existing {
		if other.ID == story.ID {
			continue
		}
		sim := jaccard(candidate, tokenSet(other.Title+" "+other.Content))
		if sim > max {
			max = sim
		}
	}
	return max
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

func readability(content string) float64 {
	if strings.TrimSpace(content) == "" {
		return 0
	}

	var lengths []float64
	for _, sentence := range sentenceSplit.Split(content, -1) {
		if n := wordCount(sentence); n > 0 {
			lengths = append(lengths, float64(n))
		}
	}
	if len(lengths) == 0 {
		return 0
	}

	mean, _ := stats.Mean(lengths)
	dev, _ := stats.StandardDeviation(lengths)

	// 12-25 words per sentence reads comfortably; heavy variance is fine,
	// none at all suggests machine-flat prose.
	sentenceScore := 0.5
	if mean >= 12 && mean <= 25 {
		sentenceScore = 1.0
	}
	varietyScore := 0.5
	if dev > 2 {
		varietyScore = 1.0
	}

	paragraphs := 0
	for _, p := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	paragraphScore := 0.5
	if paragraphs >= 3 {
		paragraphScore = 1.0
	}

	lengthScore := math.Min(float64(len(content))/1000, 1.0)

	return clamp01((sentenceScore + varietyScore + paragraphScore + lengthScore) / 4)
}

func seo(story domain.Story) float64 {
	var score float64

	if n := len(story.Title); n >= 20 && n <= 70 {
		score += 0.3
	} else if n > 0 {
		score += 0.1
	}
	if wordCount(story.Content) >= 300 {
		score += 0.3
	}
	if story.Excerpt != "" && len(story.Excerpt) <= 250 {
		score += 0.2
	}
	if containsAny(strings.ToLower(story.Title+" "+story.Content), travelKeywords) {
		score += 0.2
	}

	return clamp01(score)
}

func accuracy(story domain.Story) float64 {
	score := 1.0

	if wordCount(story.Content) < 100 {
		score -= 0.4
	}
	if strings.Count(story.Content, "!") > 5 {
		score -= 0.2
	}
	if story.Title != "" && story.Title == strings.ToUpper(story.Title) {
		score -= 0.2
	}

	return clamp01(score)
}

func brand(story domain.Story) float64 {
	text := strings.ToLower(story.Title + " " + story.Content)

	score := 1.0
	for _, banned := range prohibitedKeywords {
		if strings.Contains(text, banned) {
			score -= 0.5
		}
	}

	return clamp01(score)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:'\"()")
		if len(tok) > 2 {
			set[tok] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter int
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
