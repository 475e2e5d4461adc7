package api

import (
	"time"

	"github.com/master00J/patchwire/app/database"
	"github.com/master00J/patchwire/app/tasks"
)

type Handler struct {
	pubRepo      database.PublisherRepository
	itemRepo     database.ItemRepository
	subRepo      database.SubscriptionRepository
	deliveryRepo database.DeliveryRepository
	scheduler    tasks.TaskSchedulerInterface
}

type publisherResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	SourceType    string     `json:"source_type"`
	Enabled       bool       `json:"enabled"`
	Status        string     `json:"status"`
	LastCheckAt   *time.Time `json:"last_check_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	NextPollAt    *time.Time `json:"next_poll_at,omitempty"`
}

type itemResponse struct {
	ID          int64      `json:"id"`
	PublisherID string     `json:"publisher_id"`
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url,omitempty"`
	Type        string     `json:"type"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type deliveryResponse struct {
	ID             int64     `json:"id"`
	SubscriberID   string    `json:"subscriber_id"`
	SubscriptionID string    `json:"subscription_id"`
	Channel        string    `json:"channel"`
	MessageRef     *string   `json:"message_ref"`
	CreatedAt      time.Time `json:"created_at"`
}

type statsResponse struct {
	Publishers    int `json:"publishers"`
	NewsItems     int `json:"news_items"`
	Subscriptions int `json:"subscriptions"`
	Deliveries    int `json:"deliveries"`
}
