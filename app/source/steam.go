package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/master00J/patchwire/app/config"
	"github.com/master00J/patchwire/app/news"
)

const defaultSteamAPIURL = "https://api.steampowered.com/ISteamNews/GetNewsForApp/v2/"

var _ Adapter = (*SteamAdapter)(nil)

// SteamAdapter pulls a game's news from the Steam GetNewsForApp REST
// endpoint.
type SteamAdapter struct {
	publisherID string
	apiURL      string
	appID       int
	count       int
	timeout     time.Duration
	httpClient  *http.Client
	classifier  *news.Classifier
	userAgent   string
}

type steamNewsResponse struct {
	AppNews struct {
		AppID     int             `json:"appid"`
		NewsItems []steamNewsItem `json:"newsitems"`
	} `json:"appnews"`
}

type steamNewsItem struct {
	GID       string   `json:"gid"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Author    string   `json:"author"`
	Contents  string   `json:"contents"`
	FeedLabel string   `json:"feedlabel"`
	FeedName  string   `json:"feedname"`
	Date      int64    `json:"date"`
	Tags      []string `json:"tags"`
}

func NewSteamAdapter(publisher *config.Publisher, httpClient *http.Client, classifier *news.Classifier, userAgent string) *SteamAdapter {
	apiURL := publisher.Source.URL
	if apiURL == "" {
		apiURL = defaultSteamAPIURL
	}

	count := publisher.Source.Count
	if count <= 0 {
		count = 20
	}

	return &SteamAdapter{
		publisherID: publisher.ID,
		apiURL:      apiURL,
		appID:       publisher.Source.AppID,
		count:       count,
		timeout:     time.Duration(publisher.Settings.Timeout) * time.Second,
		httpClient:  httpClient,
		classifier:  classifier,
		userAgent:   userAgent,
	}
}

func (a *SteamAdapter) PublisherID() string {
	return a.publisherID
}

func (a *SteamAdapter) FetchLatestNews(ctx context.Context) ([]news.Item, error) {
	data, err := a.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch steam news: %w", err)
	}

	var parsed steamNewsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse steam news: %w", err)
	}

	items := make([]news.Item, 0, len(parsed.AppNews.NewsItems))
	for _, raw := range parsed.AppNews.NewsItems {
		item := a.normalizeItem(raw)
		if !item.Valid() {
			slog.Debug("Dropping malformed steam news item", "publisher", a.publisherID, "gid", raw.GID)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (a *SteamAdapter) normalizeItem(raw steamNewsItem) news.Item {
	item := news.Item{
		PublisherID: a.publisherID,
		ExternalID:  raw.GID,
		Title:       raw.Title,
		Body:        raw.Contents,
		URL:         raw.URL,
		Metadata: map[string]string{
			"feed_label": raw.FeedLabel,
			"feed_name":  raw.FeedName,
		},
	}

	if raw.Author != "" {
		item.Metadata["author"] = raw.Author
	}

	if raw.Date > 0 {
		item.PublishedAt = time.Unix(raw.Date, 0).UTC()
	}

	if item.ExternalID == "" && item.Title != "" {
		item.ExternalID = news.SynthesizeID(item.Title, item.PublishedAt)
	}

	labels := append([]string{raw.FeedLabel, raw.FeedName}, raw.Tags...)
	item.Type = a.classifier.Run(raw.Title, labels)

	return item
}

func (a *SteamAdapter) fetch(ctx context.Context) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	query := url.Values{}
	query.Set("appid", strconv.Itoa(a.appID))
	query.Set("count", strconv.Itoa(a.count))
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", a.apiURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch steam news: %w", err)
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
