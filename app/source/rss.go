package source

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/master00J/patchwire/app/config"
	"github.com/master00J/patchwire/app/news"
)

var _ Adapter = (*RSSAdapter)(nil)

// RSSAdapter pulls a publisher's RSS/Atom feed and normalizes entries
// into canonical news items.
type RSSAdapter struct {
	publisherID string
	url         string
	timeout     time.Duration
	maxItems    int
	httpClient  *http.Client
	parser      *gofeed.Parser
	classifier  *news.Classifier
	userAgent   string
}

func NewRSSAdapter(publisher *config.Publisher, httpClient *http.Client, classifier *news.Classifier, userAgent string) *RSSAdapter {
	return &RSSAdapter{
		publisherID: publisher.ID,
		url:         publisher.Source.URL,
		timeout:     time.Duration(publisher.Settings.Timeout) * time.Second,
		maxItems:    publisher.Settings.MaxItems,
		httpClient:  httpClient,
		parser:      gofeed.NewParser(),
		classifier:  classifier,
		userAgent:   userAgent,
	}
}

func (a *RSSAdapter) PublisherID() string {
	return a.publisherID
}

func (a *RSSAdapter) FetchLatestNews(ctx context.Context) ([]news.Item, error) {
	data, err := a.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := a.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := feed.Items
	if a.maxItems > 0 && len(entries) > a.maxItems {
		entries = entries[:a.maxItems]
	}

	items := make([]news.Item, 0, len(entries))
	for _, entry := range entries {
		item := a.normalizeEntry(entry)
		if !item.Valid() {
			slog.Debug("Dropping malformed feed entry", "publisher", a.publisherID, "link", entry.Link)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (a *RSSAdapter) normalizeEntry(entry *gofeed.Item) news.Item {
	item := news.Item{
		PublisherID: a.publisherID,
		ExternalID:  cmp.Or(entry.GUID, entry.Link),
		Title:       entry.Title,
		Body:        cmp.Or(entry.Description, entry.Content),
		URL:         entry.Link,
		Metadata:    map[string]string{},
	}

	if entry.PublishedParsed != nil {
		item.PublishedAt = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		item.PublishedAt = *entry.UpdatedParsed
	}

	// Some feeds carry neither a GUID nor a link; derive a stable id so
	// re-fetching the same entry never creates a new row.
	if item.ExternalID == "" && item.Title != "" {
		item.ExternalID = news.SynthesizeID(item.Title, item.PublishedAt)
	}

	if entry.Image != nil {
		item.ImageURL = entry.Image.URL
		item.ThumbnailURL = entry.Image.URL
	}
	for _, enclosure := range entry.Enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		if item.ImageURL == "" {
			item.ImageURL = enclosure.URL
			item.ThumbnailURL = enclosure.URL
		}
		break
	}

	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		item.Metadata["author"] = entry.Authors[0].Name
	}

	item.Type = a.classifier.Run(entry.Title, entry.Categories)

	return item
}

func (a *RSSAdapter) fetch(ctx context.Context) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
