package delivery

import (
	"fmt"
	"strings"

	"github.com/master00J/patchwire/app/database"
)

// BodyLimit caps the rendered body length so a full patch-note dump
// never floods a channel.
const BodyLimit = 300

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Run renders a stored item into the destination message shape for one
// subscription.
func (r *Renderer) Run(item *database.Item, sub database.Subscription) Message {
	msg := Message{
		Embed: Embed{
			Title:        item.Title,
			Description:  Truncate(stripMarkup(item.Body), BodyLimit),
			URL:          item.URL,
			ImageURL:     item.ImageURL,
			ThumbnailURL: item.ThumbnailURL,
			Fields: []EmbedField{
				{Name: "Type", Value: typeBadge(string(item.Type))},
			},
		},
	}

	if sub.NotifyRoleID != "" {
		msg.Content = fmt.Sprintf("<@&%s>", sub.NotifyRoleID)
	}

	return msg
}

func typeBadge(itemType string) string {
	if itemType == "" {
		itemType = "news"
	}
	return strings.ToUpper(itemType)
}

// Truncate shortens s to at most limit runes, appending an ellipsis
// when content was cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

// stripMarkup flattens the whitespace of HTML-ish bodies enough for a
// one-paragraph summary. Full sanitization is the destination's job.
func stripMarkup(s string) string {
	replacer := strings.NewReplacer(
		"<br>", "\n",
		"<br/>", "\n",
		"<br />", "\n",
		"\r\n", "\n",
	)
	s = replacer.Replace(s)

	lines := strings.Split(s, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
