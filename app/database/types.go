package database

import (
	"time"

	"github.com/master00J/patchwire/app/news"
)

type Publisher struct {
	ID            string // Configuration publisher identifier derived from filename
	Name          string
	SourceType    string // "rss" or "steam"
	Enabled       bool
	Status        string // "active" or "error"
	LastCheckAt   *time.Time
	LastSuccessAt *time.Time
	LastError     string
	NextPollAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Item struct {
	ID           int64
	PublisherID  string
	ExternalID   string // Publisher-assigned id, dedup key together with PublisherID
	Title        string
	Body         string
	URL          string
	ImageURL     string
	ThumbnailURL string
	Type         news.ItemType
	PublishedAt  *time.Time
	Metadata     map[string]string
	CreatedAt    time.Time
}

type Subscription struct {
	ID           string
	PublisherID  string
	SubscriberID string
	Channel      string
	NotifyRoleID string
	Filters      []string // Allowed item types, or the "all" wildcard
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Delivery struct {
	ID             int64
	NewsItemID     int64
	SubscriberID   string
	SubscriptionID string
	Channel        string
	MessageRef     *string // nil means attempted but not confirmed sent
	CreatedAt      time.Time
}
