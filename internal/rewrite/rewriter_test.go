package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"TravelReport/internal/domain"
)

type fakeChat struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeChat) Complete(_ context.Context, _, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	return f.response, f.err
}

func TestRewriteSuccess(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{
		response: `{"title": "Paris Beyond the Postcards", "content": "Paris rewards slow travellers with quiet courtyards.", "excerpt": "Paris rewards slow travellers."}`,
	}
	r := NewRewriter(chat, "", nil)

	got, err := r.Rewrite(context.Background(), "Paris Trip", "Paris is nice", Options{Category: "Destinations"})
	if err != nil {
		t.Fatalf("Rewrite error: %v", err)
	}

	if got.Title != "Paris Beyond the Postcards" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.Slug != "paris-beyond-the-postcards" {
		t.Fatalf("unexpected slug: %q", got.Slug)
	}
	if got.Fallback {
		t.Fatalf("successful rewrite flagged as fallback")
	}
	if len(chat.prompts) != 1 || !strings.Contains(chat.prompts[0], "Paris is nice") {
		t.Fatalf("prompt missing source content: %v", chat.prompts)
	}
}

func TestRewriteFencedJSON(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{
		response: "```json\n{\"title\": \"Kyoto in Autumn\", \"content\": \"Maple season transforms the old capital.\"}\n```",
	}
	r := NewRewriter(chat, "", nil)

	got, err := r.Rewrite(context.Background(), "Kyoto", "maples", Options{})
	if err != nil {
		t.Fatalf("Rewrite error: %v", err)
	}
	if got.Title != "Kyoto in Autumn" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.Excerpt == "" {
		t.Fatalf("excerpt not derived from content")
	}
}

func TestRewriteFallbackPolicy(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{err: fmt.Errorf("upstream 500")}
	r := NewRewriter(chat, "", nil)

	got, err := r.Rewrite(context.Background(), "Paris Trip", "Paris is nice", Options{FallbackOriginal: true})
	if err != nil {
		t.Fatalf("fallback policy must not surface the error, got %v", err)
	}
	if !got.Fallback {
		t.Fatalf("fallback result not flagged")
	}
	if got.Title != "Paris Trip" || got.Content != "Paris is nice" {
		t.Fatalf("fallback did not preserve original text: %+v", got)
	}
	if got.Slug != "paris-trip" {
		t.Fatalf("unexpected fallback slug: %q", got.Slug)
	}
}

func TestRewriteStrictPolicy(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{err: fmt.Errorf("upstream 500")}
	r := NewRewriter(chat, "", nil)

	got, err := r.Rewrite(context.Background(), "Paris Trip", "Paris is nice", Options{FallbackOriginal: false})
	if got != nil {
		t.Fatalf("strict policy must not return a story, got %+v", got)
	}
	if !errors.Is(err, domain.ErrRewriteUnavailable) {
		t.Fatalf("expected ErrRewriteUnavailable, got %v", err)
	}
}

func TestRewriteRejectsEmptyResponse(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{response: `{"title": "", "content": ""}`}
	r := NewRewriter(chat, "", nil)

	if _, err := r.Rewrite(context.Background(), "Paris Trip", "Paris is nice", Options{}); !errors.Is(err, domain.ErrRewriteUnavailable) {
		t.Fatalf("empty model output should map to ErrRewriteUnavailable, got %v", err)
	}
}
