package remote

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"content-panel/internal/collab"
)

// FeedClient fetches RSS 2.0 and Atom feeds.
type FeedClient struct {
	http *http.Client
}

func NewFeedClient(timeout time.Duration) *FeedClient {
	return &FeedClient{http: newHTTPClient(timeout)}
}

type rssDoc struct {
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
	// Atom entries live directly under <feed>.
	Entries []struct {
		Title string `xml:"title"`
		Link  struct {
			Href string `xml:"href,attr"`
		} `xml:"link"`
		Updated string `xml:"updated"`
	} `xml:"entry"`
}

func (c *FeedClient) FetchItems(ctx context.Context, feedURL string) ([]collab.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "content-panel/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", collab.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("feed fetch failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var doc rssDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []collab.FeedItem
	for _, it := range doc.Channel.Items {
		items = append(items, collab.FeedItem{
			Title:       it.Title,
			Link:        it.Link,
			PublishedAt: parseFeedTime(it.PubDate),
		})
	}
	for _, e := range doc.Entries {
		items = append(items, collab.FeedItem{
			Title:       e.Title,
			Link:        e.Link.Href,
			PublishedAt: parseFeedTime(e.Updated),
		})
	}
	return items, nil
}

func parseFeedTime(s string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
