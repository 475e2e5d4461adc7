package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ PublisherRepository = (*PublisherRepo)(nil)

// PublisherRepo handles database operations for publishers, including
// the health state mutated after every poll.
type PublisherRepo struct {
	db *DB
}

func NewPublisherRepository(db *DB) *PublisherRepo {
	return &PublisherRepo{db: db}
}

func (r *PublisherRepo) UpsertPublisher(publisherID, name, sourceType string, enabled bool) error {
	_, err := r.db.Exec(`
		INSERT INTO publishers (id, name, source_type, enabled)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			source_type = excluded.source_type,
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP
	`, publisherID, name, sourceType, enabled)

	if err != nil {
		return fmt.Errorf("failed to upsert publisher: %w", err)
	}

	return nil
}

// MarkSuccess records a successful poll. The status returns to active
// and the last error is cleared.
func (r *PublisherRepo) MarkSuccess(publisherID string, nextPoll time.Time) error {
	_, err := r.db.Exec(`
		UPDATE publishers
		SET status = 'active',
		    last_check_at = CURRENT_TIMESTAMP,
		    last_success_at = CURRENT_TIMESTAMP,
		    last_error = NULL,
		    next_poll_at = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, nextPoll.UTC(), publisherID)

	if err != nil {
		return fmt.Errorf("failed to mark publisher success: %w", err)
	}

	return nil
}

// MarkFailure records a failed poll. last_success_at is deliberately
// left untouched: a transient outage must not erase evidence of prior
// good operation.
func (r *PublisherRepo) MarkFailure(publisherID string, cause string, nextPoll time.Time) error {
	_, err := r.db.Exec(`
		UPDATE publishers
		SET status = 'error',
		    last_check_at = CURRENT_TIMESTAMP,
		    last_error = ?,
		    next_poll_at = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, cause, nextPoll.UTC(), publisherID)

	if err != nil {
		return fmt.Errorf("failed to mark publisher failure: %w", err)
	}

	return nil
}

func (r *PublisherRepo) GetPublisher(publisherID string) (*Publisher, error) {
	var p Publisher
	var lastError sql.NullString

	err := r.db.QueryRow(`
		SELECT id, name, source_type, enabled, status,
		       last_check_at, last_success_at, last_error, next_poll_at,
		       created_at, updated_at
		FROM publishers
		WHERE id = ?
	`, publisherID).Scan(
		&p.ID, &p.Name, &p.SourceType, &p.Enabled, &p.Status,
		&p.LastCheckAt, &p.LastSuccessAt, &lastError, &p.NextPollAt,
		&p.CreatedAt, &p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher: %w", err)
	}

	p.LastError = lastError.String

	return &p, nil
}

func (r *PublisherRepo) GetPublishers() ([]Publisher, error) {
	rows, err := r.db.Query(`
		SELECT id, name, source_type, enabled, status,
		       last_check_at, last_success_at, last_error, next_poll_at,
		       created_at, updated_at
		FROM publishers
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get publishers: %w", err)
	}
	defer rows.Close()

	var publishers []Publisher
	for rows.Next() {
		var p Publisher
		var lastError sql.NullString
		err := rows.Scan(
			&p.ID, &p.Name, &p.SourceType, &p.Enabled, &p.Status,
			&p.LastCheckAt, &p.LastSuccessAt, &lastError, &p.NextPollAt,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publisher row: %w", err)
		}
		p.LastError = lastError.String
		publishers = append(publishers, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating publisher rows: %w", err)
	}

	return publishers, nil
}

func (r *PublisherRepo) GetPublisherCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM publishers").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get publisher count: %w", err)
	}
	return count, nil
}
