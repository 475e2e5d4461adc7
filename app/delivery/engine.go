package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/time/rate"

	"github.com/master00J/patchwire/app/database"
	"github.com/master00J/patchwire/app/news"
)

// Engine fans a newly ingested item out to every matching enabled
// subscription. Send failures are isolated per subscription and never
// propagate to siblings or to the publisher's health.
type Engine struct {
	subRepo      database.SubscriptionRepository
	deliveryRepo database.DeliveryRepository
	notifier     Notifier
	renderer     *Renderer
	limiter      *rate.Limiter
}

func NewEngine(subRepo database.SubscriptionRepository, deliveryRepo database.DeliveryRepository,
	notifier Notifier, limiter *rate.Limiter) *Engine {
	return &Engine{
		subRepo:      subRepo,
		deliveryRepo: deliveryRepo,
		notifier:     notifier,
		renderer:     NewRenderer(),
		limiter:      limiter,
	}
}

// Deliver is invoked once per newly inserted item, never for items
// that already existed. The delivery record is claimed before the send:
// a crash between record and send under-delivers rather than producing
// a duplicate notification, and a failed send still consumes the slot
// (at most one delivery attempt per pair).
func (e *Engine) Deliver(ctx context.Context, item *database.Item) error {
	subs, err := e.subRepo.GetEnabled(item.PublisherID)
	if err != nil {
		return fmt.Errorf("failed to query subscriptions: %w", err)
	}

	sent := 0
	skipped := 0
	failed := 0

	for _, sub := range subs {
		if !Matches(sub.Filters, item.Type) {
			continue
		}

		deliveryID, inserted, err := e.deliveryRepo.InsertIfAbsent(item.ID, sub.SubscriberID, sub.ID, sub.Channel)
		if err != nil {
			return fmt.Errorf("failed to claim delivery slot: %w", err)
		}
		if !inserted {
			skipped++
			continue
		}

		if err := e.send(ctx, item, sub, deliveryID); err != nil {
			failed++
			logSendFailure(item, sub, err)
			continue
		}
		sent++
	}

	slog.Debug("Fan-out completed", "publisher", item.PublisherID, "item", item.ExternalID, "subscriptions", len(subs), "sent", sent, "skipped", skipped, "failed", failed)

	return nil
}

func (e *Engine) send(ctx context.Context, item *database.Item, sub database.Subscription, deliveryID int64) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	msg := e.renderer.Run(item, sub)

	ref, err := e.notifier.SendMessage(ctx, sub.Channel, msg)
	if err != nil {
		return err
	}

	if err := e.deliveryRepo.SetMessageRef(deliveryID, ref); err != nil {
		// The message is out; a missing ref only loses the audit trail.
		slog.Warn("Failed to record message ref", "subscription", sub.ID, "delivery_id", deliveryID, "error", err)
	}

	return nil
}

// Matches reports whether a subscription's filter set admits the item
// type: the "all" wildcard matches everything, otherwise the type must
// be listed.
func Matches(filters []string, itemType news.ItemType) bool {
	if slices.Contains(filters, news.FilterAll) {
		return true
	}
	return slices.Contains(filters, string(itemType))
}

func logSendFailure(item *database.Item, sub database.Subscription, err error) {
	switch {
	case errors.Is(err, ErrChannelNotFound):
		slog.Warn("Destination channel not found", "subscription", sub.ID, "channel", sub.Channel, "item", item.ExternalID)
	case errors.Is(err, ErrForbidden):
		slog.Warn("No permission to post in destination channel", "subscription", sub.ID, "channel", sub.Channel, "item", item.ExternalID)
	default:
		slog.Warn("Destination send failed", "subscription", sub.ID, "channel", sub.Channel, "item", item.ExternalID, "error", err)
	}
}
