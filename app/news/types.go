package news

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type ItemType string

const (
	TypePatch       ItemType = "patch"
	TypeHotfix      ItemType = "hotfix"
	TypeEvent       ItemType = "event"
	TypeMaintenance ItemType = "maintenance"
	TypeNews        ItemType = "news"
)

// FilterAll is the wildcard filter value matching every item type.
const FilterAll = "all"

var knownTypes = map[ItemType]bool{
	TypePatch:       true,
	TypeHotfix:      true,
	TypeEvent:       true,
	TypeMaintenance: true,
	TypeNews:        true,
}

func ParseItemType(s string) (ItemType, bool) {
	t := ItemType(s)
	return t, knownTypes[t]
}

// Item is a canonical news item normalized by a source adapter,
// before it has been persisted.
type Item struct {
	PublisherID  string
	ExternalID   string
	Title        string
	Body         string
	URL          string
	ImageURL     string
	ThumbnailURL string
	Type         ItemType
	PublishedAt  time.Time
	Metadata     map[string]string
}

// Valid reports whether the item carries the fields required for
// ingestion. Adapters drop invalid items instead of forwarding them.
func (i Item) Valid() bool {
	return i.PublisherID != "" && i.ExternalID != "" && i.Title != ""
}

// SynthesizeID derives a stable external id for publishers that assign
// none, so re-fetching the same item never produces a new row.
func SynthesizeID(title string, publishedAt time.Time) string {
	content := fmt.Sprintf("%s|%d", title, publishedAt.Unix())
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
