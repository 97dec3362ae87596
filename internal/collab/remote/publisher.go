package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"content-panel/internal/collab"
	"content-panel/internal/models"
)

// WPPublisher implements collab.Publisher against a WordPress-style REST
// API (/wp-json/wp/v2). Credentials come from the site record, so one
// client instance serves every site.
type WPPublisher struct {
	http *http.Client
}

func NewWPPublisher(timeout time.Duration) *WPPublisher {
	return &WPPublisher{http: newHTTPClient(timeout)}
}

func (p *WPPublisher) endpoint(site *models.Site, path string) string {
	return strings.TrimSuffix(site.BaseURL, "/") + "/wp-json/wp/v2" + path
}

func (p *WPPublisher) do(ctx context.Context, site *models.Site, method, url string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth := base64.StdEncoding.EncodeToString([]byte(site.APIUsername + ":" + site.APIToken))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", collab.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", collab.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("site rejected request: status %d: %s", resp.StatusCode, truncate(data, 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type wpPost struct {
	ID      int64  `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	Status  string `json:"status,omitempty"`
	Link    string `json:"link,omitempty"`
	Meta    struct {
		Description string `json:"description,omitempty"`
	} `json:"meta,omitempty"`
	Categories []int64 `json:"categories,omitempty"`
	Tags       []int64 `json:"tags,omitempty"`
}

func (p *WPPublisher) Publish(ctx context.Context, site *models.Site, content collab.PostContent) (*collab.PublishResult, error) {
	post := wpPost{
		Title:   content.Title,
		Content: content.BodyHTML,
		Excerpt: content.Excerpt,
		Status:  content.State,
	}
	if post.Status == "" {
		post.Status = site.DefaultPublishState
	}

	// Taxonomy names must be resolved to remote term IDs before the post
	// can reference them.
	if len(content.Categories) > 0 {
		ids, err := p.EnsureTaxonomyTerms(ctx, site, "categories", content.Categories)
		if err != nil {
			return nil, fmt.Errorf("ensure categories: %w", err)
		}
		post.Categories = ids
	}
	if len(content.Tags) > 0 {
		ids, err := p.EnsureTaxonomyTerms(ctx, site, "tags", content.Tags)
		if err != nil {
			return nil, fmt.Errorf("ensure tags: %w", err)
		}
		post.Tags = ids
	}

	// Responses render title/content as objects, so only the identifying
	// fields are decoded.
	var created struct {
		ID   int64  `json:"id"`
		Link string `json:"link"`
	}
	if err := p.do(ctx, site, http.MethodPost, p.endpoint(site, "/posts"), post, &created); err != nil {
		return nil, err
	}
	return &collab.PublishResult{RemoteID: created.ID, RemoteURL: created.Link}, nil
}

func (p *WPPublisher) SetPostState(ctx context.Context, site *models.Site, remoteID int64, state string) error {
	target := fmt.Sprintf("%s/%d", p.endpoint(site, "/posts"), remoteID)
	return p.do(ctx, site, http.MethodPost, target, map[string]string{"status": state}, nil)
}

func (p *WPPublisher) DeletePost(ctx context.Context, site *models.Site, remoteID int64) error {
	target := fmt.Sprintf("%s/%d?force=true", p.endpoint(site, "/posts"), remoteID)
	return p.do(ctx, site, http.MethodDelete, target, nil, nil)
}

func (p *WPPublisher) UpdatePostMetadata(ctx context.Context, site *models.Site, remoteID int64, meta collab.Metadata) error {
	var post wpPost
	if len(meta.Categories) > 0 {
		ids, err := p.EnsureTaxonomyTerms(ctx, site, "categories", meta.Categories)
		if err != nil {
			return fmt.Errorf("ensure categories: %w", err)
		}
		post.Categories = ids
	}
	if len(meta.Tags) > 0 {
		ids, err := p.EnsureTaxonomyTerms(ctx, site, "tags", meta.Tags)
		if err != nil {
			return fmt.Errorf("ensure tags: %w", err)
		}
		post.Tags = ids
	}
	post.Meta.Description = meta.SEODescription

	target := fmt.Sprintf("%s/%d", p.endpoint(site, "/posts"), remoteID)
	return p.do(ctx, site, http.MethodPost, target, post, nil)
}

func (p *WPPublisher) UploadMedia(ctx context.Context, site *models.Site, filename string, data []byte) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(site, "/media"), bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(site.APIUsername + ":" + site.APIToken))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", collab.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("media upload failed: status %d", resp.StatusCode)
	}
	var media struct {
		ID int64 `json:"id"`
	}
	if err := decodeBody(resp, &media); err != nil {
		return 0, err
	}
	return media.ID, nil
}

// EnsureTaxonomyTerms resolves names to term IDs, creating terms that do
// not exist yet. WordPress answers term creation for an existing name with
// 400 term_exists carrying the existing ID, which counts as success here.
func (p *WPPublisher) EnsureTaxonomyTerms(ctx context.Context, site *models.Site, taxonomy string, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var term struct {
			ID int64 `json:"id"`
		}
		err := p.do(ctx, site, http.MethodPost, p.endpoint(site, "/"+taxonomy), map[string]string{"name": name}, &term)
		if err == nil {
			ids = append(ids, term.ID)
			continue
		}

		existing, lookupErr := p.findTerm(ctx, site, taxonomy, name)
		if lookupErr != nil {
			return nil, fmt.Errorf("term %q: %w", name, err)
		}
		ids = append(ids, existing)
	}
	return ids, nil
}

func (p *WPPublisher) findTerm(ctx context.Context, site *models.Site, taxonomy, name string) (int64, error) {
	target := fmt.Sprintf("%s/%s?search=%s", p.endpoint(site, ""), taxonomy, url.QueryEscape(name))
	var terms []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := p.do(ctx, site, http.MethodGet, target, nil, &terms); err != nil {
		return 0, err
	}
	for _, t := range terms {
		if strings.EqualFold(t.Name, name) {
			return t.ID, nil
		}
	}
	return 0, fmt.Errorf("term %q not found", name)
}
