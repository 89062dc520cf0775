// Package rewrite turns raw candidate text into a polished editorial story
// via an external generative text capability.
package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"TravelReport/internal/domain"
	"TravelReport/internal/ports"
	"TravelReport/internal/slug"
)

// Options enumerates every recognized rewrite knob.
type Options struct {
	Category        string
	PreserveTags    bool
	MaintainTone    bool
	TargetWordCount int
	// FallbackOriginal keeps the pipeline moving on rewrite failure by
	// emitting the unrewritten input; when false the failure surfaces as
	// domain.ErrRewriteUnavailable and the candidate is dropped.
	FallbackOriginal bool
}

// Rewriter builds prompts and maps chat completions into rewritten stories.
type Rewriter struct {
	chat   ports.ChatCompleter
	system string
	logger *slog.Logger
}

// NewRewriter wires the chat capability. The system prompt frames the
// editorial voice for every call.
func NewRewriter(chat ports.ChatCompleter, systemPrompt string, logger *slog.Logger) *Rewriter {
	if systemPrompt == "" {
		systemPrompt = "You are a professional travel editor writing in Australian English."
	}
	return &Rewriter{chat: chat, system: systemPrompt, logger: logger}
}

type rewriteResponse struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
}

// Rewrite transforms title+content into a publishable story shape. On
// failure it applies the configured policy: fallback to the original text or
// nil result with domain.ErrRewriteUnavailable.
func (r *Rewriter) Rewrite(ctx context.Context, title, content string, opts Options) (*domain.RewrittenStory, error) {
	rewritten, err := r.callRewrite(ctx, title, content, opts)
	if err == nil {
		return rewritten, nil
	}

	if opts.FallbackOriginal {
		r.warn("rewrite failed, falling back to original content", "title", title, "error", err)
		return &domain.RewrittenStory{
			Title:    title,
			Content:  content,
			Excerpt:  domain.Excerpt(content, domain.ExcerptLength),
			Slug:     slug.Generate(title),
			Fallback: true,
		}, nil
	}

	return nil, fmt.Errorf("%w: %v", domain.ErrRewriteUnavailable, err)
}

func (r *Rewriter) callRewrite(ctx context.Context, title, content string, opts Options) (*domain.RewrittenStory, error) {
	if r.chat == nil {
		return nil, fmt.Errorf("chat capability not configured")
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty title or content")
	}

	raw, err := r.chat.Complete(ctx, r.system, buildPrompt(title, content, opts))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	resp, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	excerpt := strings.TrimSpace(resp.Excerpt)
	if excerpt == "" {
		excerpt = domain.Excerpt(resp.Content, domain.ExcerptLength)
	}

	return &domain.RewrittenStory{
		Title:   resp.Title,
		Content: resp.Content,
		Excerpt: excerpt,
		Slug:    slug.Generate(resp.Title),
	}, nil
}

func buildPrompt(title, content string, opts Options) string {
	var b strings.Builder
	b.WriteString("Rewrite the following travel story as original editorial content.\n")
	b.WriteString("Headline: max 70 characters, Title Case, include the destination.\n")
	b.WriteString("Tone: professional, factual, positive, family-friendly.\n")
	if opts.Category != "" {
		fmt.Fprintf(&b, "Category: %s.\n", opts.Category)
	}
	if opts.MaintainTone {
		b.WriteString("Maintain the tone of the source material.\n")
	}
	if opts.PreserveTags {
		b.WriteString("Keep the key topics of the source so tags stay accurate.\n")
	}
	target := opts.TargetWordCount
	if target <= 0 {
		target = 500
	}
	fmt.Fprintf(&b, "Target length: about %d words.\n", target)
	b.WriteString("Respond with JSON: {\"title\": ..., \"content\": ..., \"excerpt\": ...}\n\n")
	fmt.Fprintf(&b, "Title: %s\n\n%s", title, content)
	return b.String()
}

func parseResponse(raw string) (rewriteResponse, error) {
	var resp rewriteResponse

	// Models occasionally wrap JSON in a fenced block.
	trimmed := strings.TrimSpace(raw)
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}

	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return resp, fmt.Errorf("decode rewrite response: %w", err)
	}

	resp.Title = strings.TrimSpace(resp.Title)
	resp.Content = strings.TrimSpace(resp.Content)
	if resp.Title == "" || resp.Content == "" {
		return resp, fmt.Errorf("rewrite response missing title or content")
	}

	return resp, nil
}

func (r *Rewriter) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
