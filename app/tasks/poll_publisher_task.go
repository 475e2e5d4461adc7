package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/master00J/patchwire/app/config"
	"github.com/master00J/patchwire/app/database"
	"github.com/master00J/patchwire/app/delivery"
	"github.com/master00J/patchwire/app/source"
)

// PollPublisherTask runs one poll of one publisher: fetch, dedup
// insert, fan-out. Any failure is recorded as that publisher's health
// state and never reaches sibling publishers.
type PollPublisherTask struct {
	Task
	Publisher *config.Publisher
	adapter   source.Adapter
	pubRepo   database.PublisherRepository
	itemRepo  database.ItemRepository
	engine    *delivery.Engine
}

func NewPollPublisherTask(publisher *config.Publisher, adapter source.Adapter,
	pubRepo database.PublisherRepository, itemRepo database.ItemRepository,
	engine *delivery.Engine) *PollPublisherTask {
	task := NewTask(TaskTypePollPublisher, publisher.ID)
	// No intra-tick retries for polls: the next scheduled tick is the
	// retry mechanism.
	task.MaxRetries = 0

	return &PollPublisherTask{
		Task:      task,
		Publisher: publisher,
		adapter:   adapter,
		pubRepo:   pubRepo,
		itemRepo:  itemRepo,
		engine:    engine,
	}
}

func (t *PollPublisherTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	nextPoll := time.Now().UTC().Add(time.Duration(t.Publisher.Settings.PollInterval) * time.Second)

	items, err := t.adapter.FetchLatestNews(ctx)
	if err != nil {
		if markErr := t.pubRepo.MarkFailure(t.PublisherID, err.Error(), nextPoll); markErr != nil {
			slog.Error("Failed to record publisher failure", "publisher", t.PublisherID, "error", markErr)
		}
		return fmt.Errorf("failed to poll publisher: %w", err)
	}

	newCount := 0
	duplicateCount := 0
	droppedCount := 0

	for _, item := range items {
		// Adapters already omit malformed items; validate again so a
		// misbehaving adapter cannot poison the store.
		if !item.Valid() {
			droppedCount++
			continue
		}

		stored, inserted, err := t.itemRepo.InsertIfAbsent(item)
		if err != nil {
			if markErr := t.pubRepo.MarkFailure(t.PublisherID, err.Error(), nextPoll); markErr != nil {
				slog.Error("Failed to record publisher failure", "publisher", t.PublisherID, "error", markErr)
			}
			return fmt.Errorf("failed to store item: %w", err)
		}

		if !inserted {
			duplicateCount++
			continue
		}
		newCount++

		if err := t.engine.Deliver(ctx, stored); err != nil {
			slog.Error("Fan-out failed", "publisher", t.PublisherID, "item", stored.ExternalID, "error", err)
		}
	}

	if err := t.pubRepo.MarkSuccess(t.PublisherID, nextPoll); err != nil {
		return fmt.Errorf("failed to record publisher success: %w", err)
	}

	slog.Info("Task completed",
		"type", "PollPublisher",
		"publisher", t.PublisherID,
		"duration", t.GetDuration(),
		"total", len(items),
		"duplicates", duplicateCount,
		"dropped", droppedCount,
		"new", newCount)

	return nil
}
