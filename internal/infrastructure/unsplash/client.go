// Package unsplash provides stock photos for published stories.
package unsplash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"TravelReport/internal/config"
	"TravelReport/internal/domain"
	"TravelReport/internal/ports"
)

// Client searches the Unsplash API. Download tracking is required by the
// provider's terms, so Search remembers each result's download endpoint and
// TrackDownload pings it later.
type Client struct {
	endpoint   string
	accessKey  string
	httpClient *http.Client

	mu        sync.Mutex
	downloads map[string]string // image URL -> download endpoint
}

var _ ports.ImageSource = (*Client)(nil)

// NewClient builds a client from configuration; a nil httpClient gets a 15s
// timeout.
func NewClient(cfg config.UnsplashConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		accessKey:  cfg.AccessKey,
		httpClient: httpClient,
		downloads:  map[string]string{},
	}
}

type searchResponse struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
		User struct {
			Name  string `json:"name"`
			Links struct {
				HTML string `json:"html"`
			} `json:"links"`
		} `json:"user"`
		Links struct {
			DownloadLocation string `json:"download_location"`
		} `json:"links"`
	} `json:"results"`
}

// Search returns up to limit photo assignments for the query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.ImageAssignment, error) {
	if c.accessKey == "" || c.endpoint == "" {
		return nil, fmt.Errorf("unsplash client misconfigured")
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search photos: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unsplash error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	assignments := make([]domain.ImageAssignment, 0, len(parsed.Results))
	c.mu.Lock()
	for _, result := range parsed.Results {
		if result.URLs.Regular == "" {
			continue
		}
		assignments = append(assignments, domain.ImageAssignment{
			ImageURL: result.URLs.Regular,
			Photographer: domain.Photographer{
				Name:       result.User.Name,
				ProfileURL: result.User.Links.HTML,
			},
		})
		if result.Links.DownloadLocation != "" {
			c.downloads[result.URLs.Regular] = result.Links.DownloadLocation
		}
	}
	c.mu.Unlock()

	return assignments, nil
}

// TrackDownload pings the download endpoint recorded for imageURL. Unknown
// URLs are a no-op so callers never fail a publish over attribution.
func (c *Client) TrackDownload(ctx context.Context, imageURL string) error {
	c.mu.Lock()
	endpoint, ok := c.downloads[imageURL]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("track download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unsplash download tracking returned %s", resp.Status)
	}
	return nil
}
