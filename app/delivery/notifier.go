package delivery

import (
	"context"
	"errors"
	"log/slog"
)

// Typed failure outcomes for the destination-send capability. The
// engine handles all three the same way (log and skip the
// subscription), but callers and tests can tell them apart.
var (
	ErrChannelNotFound = errors.New("destination channel not found")
	ErrForbidden       = errors.New("insufficient permission for destination channel")
)

type EmbedField struct {
	Name  string
	Value string
}

type Embed struct {
	Title        string
	Description  string
	URL          string
	ImageURL     string
	ThumbnailURL string
	Fields       []EmbedField
}

// Message is the destination-ready shape rendered for one
// subscription.
type Message struct {
	Content string // optional plain prefix, e.g. a role mention
	Embed   Embed
}

// Notifier is the boundary to the chat-destination platform. Failures
// come back as returned errors, never as panics across the pipeline.
type Notifier interface {
	// SendMessage posts to the destination channel and returns a
	// reference to the created message.
	SendMessage(ctx context.Context, channel string, msg Message) (string, error)

	// CheckAccess reports whether the service can post in the channel.
	CheckAccess(ctx context.Context, channel string) error
}

var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes deliveries to the log instead of an external
// destination. Used when no destination credentials are configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SendMessage(ctx context.Context, channel string, msg Message) (string, error) {
	slog.Info("Delivery (log only)", "channel", channel, "title", msg.Embed.Title, "url", msg.Embed.URL)
	return "logged", nil
}

func (n *LogNotifier) CheckAccess(ctx context.Context, channel string) error {
	return nil
}
