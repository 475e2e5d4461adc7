package database

import (
	"time"

	"github.com/master00J/patchwire/app/news"
)

type PublisherRepository interface {
	GetPublisher(publisherID string) (*Publisher, error)
	GetPublishers() ([]Publisher, error)
	GetPublisherCount() (int, error)

	UpsertPublisher(publisherID, name, sourceType string, enabled bool) error
	MarkSuccess(publisherID string, nextPoll time.Time) error
	MarkFailure(publisherID string, cause string, nextPoll time.Time) error
}

type ItemRepository interface {
	// InsertIfAbsent persists the item unless a row with the same
	// (publisher_id, external_id) already exists. The stored row is
	// returned either way; inserted reports whether this call created it.
	InsertIfAbsent(item news.Item) (*Item, bool, error)

	GetItem(id int64) (*Item, error)
	GetItemCount() (int, error)
	GetRecentItems(limit int) ([]Item, error)
}

type SubscriptionRepository interface {
	// GetEnabled is the only read the pipeline performs against
	// subscriptions; the CRUD surface that owns them lives elsewhere.
	GetEnabled(publisherID string) ([]Subscription, error)

	UpsertSubscription(sub Subscription) error
	GetSubscriptionCount() (int, error)
}

type DeliveryRepository interface {
	// InsertIfAbsent consumes the idempotency slot for the
	// (news_item_id, subscriber_id) pair before any send is attempted.
	InsertIfAbsent(newsItemID int64, subscriberID, subscriptionID, channel string) (int64, bool, error)

	SetMessageRef(deliveryID int64, messageRef string) error
	GetDeliveriesForItem(newsItemID int64) ([]Delivery, error)
	GetDeliveryCount() (int, error)
}
