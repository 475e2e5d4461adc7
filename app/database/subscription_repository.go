package database

import (
	"encoding/json"
	"fmt"
)

var _ SubscriptionRepository = (*SubscriptionRepo)(nil)

// SubscriptionRepo handles database operations for subscriptions. The
// pipeline writes them only during startup registration; afterwards it
// only reads the enabled ones for a publisher.
type SubscriptionRepo struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

func (r *SubscriptionRepo) UpsertSubscription(sub Subscription) error {
	filters, err := json.Marshal(sub.Filters)
	if err != nil {
		return fmt.Errorf("failed to encode subscription filters: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO subscriptions (id, publisher_id, subscriber_id, channel, notify_role_id, filters, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			publisher_id = excluded.publisher_id,
			subscriber_id = excluded.subscriber_id,
			channel = excluded.channel,
			notify_role_id = excluded.notify_role_id,
			filters = excluded.filters,
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP
	`, sub.ID, sub.PublisherID, sub.SubscriberID, sub.Channel, sub.NotifyRoleID, string(filters), sub.Enabled)

	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

func (r *SubscriptionRepo) GetEnabled(publisherID string) ([]Subscription, error) {
	rows, err := r.db.Query(`
		SELECT id, publisher_id, subscriber_id, channel, notify_role_id, filters, enabled, created_at, updated_at
		FROM subscriptions
		WHERE publisher_id = ? AND enabled = 1
		ORDER BY id
	`, publisherID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		var filters string
		err := rows.Scan(
			&sub.ID, &sub.PublisherID, &sub.SubscriberID, &sub.Channel,
			&sub.NotifyRoleID, &filters, &sub.Enabled, &sub.CreatedAt, &sub.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}

		if err := json.Unmarshal([]byte(filters), &sub.Filters); err != nil {
			return nil, fmt.Errorf("failed to decode subscription filters: %w", err)
		}

		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}

	return subs, nil
}

func (r *SubscriptionRepo) GetSubscriptionCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM subscriptions WHERE enabled = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get subscription count: %w", err)
	}
	return count, nil
}
