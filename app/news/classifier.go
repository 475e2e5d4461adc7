package news

import (
	"strings"
)

// Classifier maps publisher-native titles and labels to a canonical
// item type using keyword heuristics. Best effort: a misclassified
// item is still delivered, just with a different badge.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

var typeKeywords = []struct {
	itemType ItemType
	keywords []string
}{
	{TypeHotfix, []string{"hotfix", "hot fix", "emergency fix"}},
	{TypeMaintenance, []string{"maintenance", "downtime", "server restart", "scheduled restart"}},
	{TypePatch, []string{"patch", "update", "changelog", "release notes", "balance changes"}},
	{TypeEvent, []string{"event", "festival", "celebration", "tournament", "season start"}},
}

var labelTypes = map[string]ItemType{
	"patchnotes":      TypePatch,
	"patch notes":     TypePatch,
	"product update":  TypePatch,
	"product release": TypePatch,
	"hotfix":          TypeHotfix,
	"event":           TypeEvent,
	"events":          TypeEvent,
	"maintenance":     TypeMaintenance,
}

// Run classifies an item from its title and any publisher-provided
// labels (feed categories, Steam feed labels and tags). Labels take
// precedence over title keywords; the default is TypeNews.
func (c *Classifier) Run(title string, labels []string) ItemType {
	for _, label := range labels {
		if t, ok := labelTypes[strings.ToLower(strings.TrimSpace(label))]; ok {
			return t
		}
	}

	lower := strings.ToLower(title)
	for _, entry := range typeKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.itemType
			}
		}
	}

	return TypeNews
}
