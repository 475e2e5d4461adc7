package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/master00J/patchwire/app/delivery"
)

var _ delivery.Notifier = (*Notifier)(nil)

// Notifier delivers rendered messages to Telegram chats. Destination
// channel strings are numeric chat ids.
type Notifier struct {
	bot *tele.Bot
}

func New(token string) (*Notifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Notifier{bot: bot}, nil
}

func (n *Notifier) SendMessage(ctx context.Context, channel string, msg delivery.Message) (string, error) {
	chatID, err := parseChannel(channel)
	if err != nil {
		return "", delivery.ErrChannelNotFound
	}

	text := formatMessage(msg)

	sent, err := n.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: msg.Embed.ImageURL == "",
	})
	if err != nil {
		return "", mapError(err)
	}

	return strconv.Itoa(sent.ID), nil
}

func (n *Notifier) CheckAccess(ctx context.Context, channel string) error {
	chatID, err := parseChannel(channel)
	if err != nil {
		return delivery.ErrChannelNotFound
	}

	if _, err := n.bot.ChatByID(chatID); err != nil {
		return mapError(err)
	}

	return nil
}

func parseChannel(channel string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(channel), 10, 64)
}

// formatMessage flattens the embed shape into Telegram HTML.
func formatMessage(msg delivery.Message) string {
	var sb strings.Builder

	if msg.Content != "" {
		sb.WriteString(html.EscapeString(msg.Content))
		sb.WriteString("\n")
	}

	if msg.Embed.URL != "" {
		sb.WriteString(fmt.Sprintf("<b><a href=\"%s\">%s</a></b>\n", msg.Embed.URL, html.EscapeString(msg.Embed.Title)))
	} else {
		sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(msg.Embed.Title)))
	}

	for _, field := range msg.Embed.Fields {
		sb.WriteString(fmt.Sprintf("<i>%s: %s</i>\n", html.EscapeString(field.Name), html.EscapeString(field.Value)))
	}

	if msg.Embed.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(msg.Embed.Description))
	}

	return sb.String()
}

func mapError(err error) error {
	switch {
	case errors.Is(err, tele.ErrChatNotFound):
		return delivery.ErrChannelNotFound
	case isForbidden(err):
		return delivery.ErrForbidden
	default:
		return fmt.Errorf("telegram send failed: %w", err)
	}
}

func isForbidden(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "forbidden") || strings.Contains(msg, "not enough rights")
}
