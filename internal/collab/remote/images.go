package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"content-panel/internal/collab"
)

// ImageClient queries a stock-image search API (Pexels-style: GET /search
// with an Authorization header).
type ImageClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewImageClient(baseURL, apiKey string, timeout time.Duration) *ImageClient {
	return &ImageClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    newHTTPClient(timeout),
	}
}

type imageSearchResponse struct {
	Photos []struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Alt    string `json:"alt"`
		Src    struct {
			Large string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

func (c *ImageClient) Search(ctx context.Context, phrase string, count int) ([]collab.Image, error) {
	if count <= 0 {
		count = 1
	}
	endpoint := fmt.Sprintf("%s/search?query=%s&per_page=%d", c.baseURL, url.QueryEscape(phrase), count)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", collab.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", collab.ErrQuotaExceeded, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("image search failed: status %d", resp.StatusCode)
	}

	var payload imageSearchResponse
	if err := decodeBody(resp, &payload); err != nil {
		return nil, err
	}

	// No matches is a valid, empty result.
	images := make([]collab.Image, 0, len(payload.Photos))
	for _, p := range payload.Photos {
		images = append(images, collab.Image{
			URL:            p.Src.Large,
			Width:          p.Width,
			Height:         p.Height,
			Title:          p.Alt,
			SourceProvider: "pexels",
		})
	}
	return images, nil
}
