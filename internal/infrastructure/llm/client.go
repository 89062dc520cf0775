// Package llm talks to OpenAI-compatible chat completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"TravelReport/internal/config"
	"TravelReport/internal/ports"
)

// Client implements chat completion and category classification over one
// OpenAI-compatible endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var (
	_ ports.ChatCompleter = (*Client)(nil)
	_ ports.Classifier    = (*Client)(nil)
)

// categories a story can be filed under. The classifier must answer with one
// of these; anything else falls back to the first entry.
var categories = []string{
	"Adventure", "Culture", "Food & Dining", "Cruises", "Luxury",
	"Budget Travel", "Family", "Nature", "City Guide",
}

// NewClient builds a client from configuration; a nil httpClient gets a 30s
// timeout.
func NewClient(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts one system/user prompt pair and returns the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("llm client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm returned empty content")
	}
	return content, nil
}

// Classify asks the model for the single best category and snaps the answer
// onto the known list.
func (c *Client) Classify(ctx context.Context, text string) (string, error) {
	system := "You are a travel content classifier. Answer with exactly one category name and nothing else."
	user := fmt.Sprintf("Categories: %s.\n\nClassify this story:\n\n%s",
		strings.Join(categories, ", "), truncate(text, 2000))

	answer, err := c.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	return NormalizeCategory(answer), nil
}

// NormalizeCategory maps a free-form answer to a known category. Unknown
// answers land in the first category.
func NormalizeCategory(answer string) string {
	cleaned := strings.Trim(strings.TrimSpace(answer), `"'.`)
	for _, cat := range categories {
		if strings.EqualFold(cleaned, cat) {
			return cat
		}
	}
	for _, cat := range categories {
		if strings.Contains(strings.ToLower(cleaned), strings.ToLower(cat)) {
			return cat
		}
	}
	return categories[0]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
