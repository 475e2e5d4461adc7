package database

import (
	"database/sql"
	"fmt"
)

var _ DeliveryRepository = (*DeliveryRepo)(nil)

// DeliveryRepo handles database operations for delivery records. The
// (news_item_id, subscriber_id) unique constraint is the idempotency
// boundary preventing duplicate notifications across retries or
// overlapping poll cycles.
type DeliveryRepo struct {
	db *DB
}

func NewDeliveryRepository(db *DB) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// InsertIfAbsent claims the delivery slot for an (item, subscriber)
// pair. A zero id with inserted == false means another attempt already
// holds the slot and the caller must not send.
func (r *DeliveryRepo) InsertIfAbsent(newsItemID int64, subscriberID, subscriptionID, channel string) (int64, bool, error) {
	result, err := r.db.Exec(`
		INSERT INTO deliveries (news_item_id, subscriber_id, subscription_id, channel)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (news_item_id, subscriber_id) DO NOTHING
	`, newsItemID, subscriberID, subscriptionID, channel)

	if err != nil {
		return 0, false, fmt.Errorf("failed to insert delivery: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read delivery id: %w", err)
	}

	return id, true, nil
}

// SetMessageRef records the destination message reference after a
// confirmed send. A record without one marks an attempt that was never
// confirmed.
func (r *DeliveryRepo) SetMessageRef(deliveryID int64, messageRef string) error {
	_, err := r.db.Exec(`
		UPDATE deliveries SET message_ref = ? WHERE id = ?
	`, messageRef, deliveryID)

	if err != nil {
		return fmt.Errorf("failed to set delivery message ref: %w", err)
	}

	return nil
}

func (r *DeliveryRepo) GetDeliveriesForItem(newsItemID int64) ([]Delivery, error) {
	rows, err := r.db.Query(`
		SELECT id, news_item_id, subscriber_id, subscription_id, channel, message_ref, created_at
		FROM deliveries
		WHERE news_item_id = ?
		ORDER BY id
	`, newsItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		var messageRef sql.NullString
		err := rows.Scan(&d.ID, &d.NewsItemID, &d.SubscriberID, &d.SubscriptionID, &d.Channel, &messageRef, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: %w", err)
		}
		if messageRef.Valid {
			d.MessageRef = &messageRef.String
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery rows: %w", err)
	}

	return deliveries, nil
}

func (r *DeliveryRepo) GetDeliveryCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM deliveries").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get delivery count: %w", err)
	}
	return count, nil
}
