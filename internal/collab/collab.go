// Package collab declares the narrow contracts the engine consumes from
// external services: content generation, metadata generation, image search,
// remote publishing, and feed reading. Implementations live in collab/remote
// and in test fakes; the engine only sees these interfaces.
package collab

import (
	"context"
	"errors"
	"strings"
	"time"

	"content-panel/internal/models"
)

var (
	// ErrProviderUnavailable means the remote service could not be reached
	// or returned a 5xx. Retryable at the caller's discretion.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrQuotaExceeded means the provider rejected the call for rate or
	// quota reasons. Retrying immediately will not help.
	ErrQuotaExceeded = errors.New("provider quota exceeded")
)

// GeneratedContent is the output of one content-generation call.
type GeneratedContent struct {
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	BodyHTML string `json:"body_html"`
}

// Metadata is the structured payload a metadata generator produces for an
// article. Providers wrap it in incidental formatting; parsing and
// unwrapping happen in the pipeline, which is why MetadataGenerator returns
// a raw string.
type Metadata struct {
	Categories     []string `json:"categories"`
	Tags           []string `json:"tags"`
	SEODescription string   `json:"seo_description"`
	SEOKeywords    []string `json:"seo_keywords"`
}

// Image is one image-search result.
type Image struct {
	URL            string `json:"url"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Title          string `json:"title"`
	SourceProvider string `json:"source_provider"`
}

// FeedItem is one entry from a source feed.
type FeedItem struct {
	Title       string
	Link        string
	PublishedAt time.Time
}

// PostContent is the full payload the publisher sends to a remote site.
type PostContent struct {
	Title         string
	BodyHTML      string
	Excerpt       string
	Categories    []string
	Tags          []string
	FeaturedImage string
	State         string // "publish" or "draft"
}

// PublishResult identifies the post created on the remote site.
type PublishResult struct {
	RemoteID  int64
	RemoteURL string
}

// ContentGenerator produces an article for a topic.
type ContentGenerator interface {
	Generate(ctx context.Context, topic string) (*GeneratedContent, error)
}

// MetadataGenerator produces taxonomy and SEO metadata for an article. The
// return value is the provider's raw payload, possibly wrapped in
// decorative formatting.
type MetadataGenerator interface {
	GenerateMetadata(ctx context.Context, title, body string) (string, error)
}

// ImageProvider searches stock-image services. Zero results is not an
// error.
type ImageProvider interface {
	Search(ctx context.Context, phrase string, count int) ([]Image, error)
}

// Publisher talks to one remote publishing site. All calls are scoped to a
// site because credentials and base URLs differ per target.
type Publisher interface {
	Publish(ctx context.Context, site *models.Site, content PostContent) (*PublishResult, error)
	SetPostState(ctx context.Context, site *models.Site, remoteID int64, state string) error
	DeletePost(ctx context.Context, site *models.Site, remoteID int64) error
	UpdatePostMetadata(ctx context.Context, site *models.Site, remoteID int64, meta Metadata) error
	UploadMedia(ctx context.Context, site *models.Site, filename string, data []byte) (int64, error)
	EnsureTaxonomyTerms(ctx context.Context, site *models.Site, taxonomy string, names []string) ([]int64, error)
}

// FeedReader fetches items from a source feed.
type FeedReader interface {
	FetchItems(ctx context.Context, feedURL string) ([]FeedItem, error)
}

// UnwrapJSONPayload strips the decorative formatting providers wrap around
// JSON completions: code fences, a language tag, prose before or after the
// object. The outermost JSON object is kept if one exists.
func UnwrapJSONPayload(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop a language tag like "json" on the fence line
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			first := strings.TrimSpace(s[:idx])
			if len(first) <= 10 && !strings.ContainsAny(first, "{}") {
				s = s[idx+1:]
			}
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
