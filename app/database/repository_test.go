package database

import (
	"sync"
	"testing"
	"time"

	"github.com/master00J/patchwire/app/news"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	return db
}

func seedPublisher(t *testing.T, db *DB, id string) {
	t.Helper()
	if err := NewPublisherRepository(db).UpsertPublisher(id, id, "rss", true); err != nil {
		t.Fatal(err)
	}
}

func TestItemRepo_InsertIfAbsent(t *testing.T) {
	db := newTestDB(t)
	seedPublisher(t, db, "steam")
	repo := NewItemRepository(db)

	published := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	item := news.Item{
		PublisherID: "steam",
		ExternalID:  "a1",
		Title:       "Patch 1.2",
		Body:        "Fixes and improvements",
		URL:         "https://example.com/a1",
		Type:        news.TypePatch,
		PublishedAt: published,
		Metadata:    map[string]string{"feed_label": "patchnotes"},
	}

	stored, inserted, err := repo.InsertIfAbsent(item)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("expected first insert to report inserted")
	}
	if stored.ID == 0 {
		t.Error("expected stored item to carry a database id")
	}
	if stored.Type != news.TypePatch {
		t.Errorf("expected item type patch, got %q", stored.Type)
	}
	if stored.Metadata["feed_label"] != "patchnotes" {
		t.Errorf("expected metadata round trip, got %v", stored.Metadata)
	}
	if stored.PublishedAt == nil || !stored.PublishedAt.Equal(published) {
		t.Errorf("expected published_at %v, got %v", published, stored.PublishedAt)
	}

	// Re-ingesting the same (publisher, external id) is the expected
	// steady state, not an error.
	again, inserted, err := repo.InsertIfAbsent(item)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("expected second insert to report already exists")
	}
	if again.ID != stored.ID {
		t.Errorf("expected the original row, got id %d vs %d", again.ID, stored.ID)
	}

	count, err := repo.GetItemCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly one row, got %d", count)
	}
}

func TestItemRepo_InsertIfAbsent_Concurrent(t *testing.T) {
	db := newTestDB(t)
	seedPublisher(t, db, "steam")
	repo := NewItemRepository(db)

	item := news.Item{PublisherID: "steam", ExternalID: "race", Title: "Patch"}

	const attempts = 10
	insertedCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, inserted, err := repo.InsertIfAbsent(item)
			if err != nil {
				t.Error(err)
				return
			}
			if inserted {
				mu.Lock()
				insertedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if insertedCount != 1 {
		t.Errorf("expected exactly one winning insert, got %d", insertedCount)
	}

	count, err := repo.GetItemCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly one row, got %d", count)
	}
}

func TestItemRepo_SamePairDistinctPublishers(t *testing.T) {
	db := newTestDB(t)
	seedPublisher(t, db, "lol")
	seedPublisher(t, db, "cs2")
	repo := NewItemRepository(db)

	_, inserted, err := repo.InsertIfAbsent(news.Item{PublisherID: "lol", ExternalID: "a1", Title: "Patch"})
	if err != nil || !inserted {
		t.Fatalf("first insert failed: inserted=%v err=%v", inserted, err)
	}

	// The dedup key is scoped per publisher.
	_, inserted, err = repo.InsertIfAbsent(news.Item{PublisherID: "cs2", ExternalID: "a1", Title: "Patch"})
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Error("expected the same external id under another publisher to insert")
	}
}

func TestDeliveryRepo_InsertIfAbsent(t *testing.T) {
	db := newTestDB(t)
	seedPublisher(t, db, "steam")
	itemRepo := NewItemRepository(db)
	repo := NewDeliveryRepository(db)

	stored, _, err := itemRepo.InsertIfAbsent(news.Item{PublisherID: "steam", ExternalID: "a1", Title: "Patch"})
	if err != nil {
		t.Fatal(err)
	}

	id, inserted, err := repo.InsertIfAbsent(stored.ID, "guild-1", "sub-1", "chan-1")
	if err != nil {
		t.Fatal(err)
	}
	if !inserted || id == 0 {
		t.Fatalf("expected first claim to win, inserted=%v id=%d", inserted, id)
	}

	// The slot stays consumed no matter how often delivery is retried.
	_, inserted, err = repo.InsertIfAbsent(stored.ID, "guild-1", "sub-1", "chan-1")
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("expected second claim for the same pair to lose")
	}

	// A different subscriber gets its own slot.
	_, inserted, err = repo.InsertIfAbsent(stored.ID, "guild-2", "sub-2", "chan-2")
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Error("expected a different subscriber to claim its own slot")
	}

	if err := repo.SetMessageRef(id, "msg-42"); err != nil {
		t.Fatal(err)
	}

	deliveries, err := repo.GetDeliveriesForItem(stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}
	if deliveries[0].MessageRef == nil || *deliveries[0].MessageRef != "msg-42" {
		t.Errorf("expected message ref on confirmed delivery, got %v", deliveries[0].MessageRef)
	}
	if deliveries[1].MessageRef != nil {
		t.Errorf("expected unconfirmed delivery to have no message ref, got %v", *deliveries[1].MessageRef)
	}
}

func TestDeliveryRepo_InsertIfAbsent_Concurrent(t *testing.T) {
	db := newTestDB(t)
	seedPublisher(t, db, "steam")
	itemRepo := NewItemRepository(db)
	repo := NewDeliveryRepository(db)

	stored, _, err := itemRepo.InsertIfAbsent(news.Item{PublisherID: "steam", ExternalID: "a1", Title: "Patch"})
	if err != nil {
		t.Fatal(err)
	}

	const attempts = 10
	wins := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, inserted, err := repo.InsertIfAbsent(stored.ID, "guild-1", "sub-1", "chan-1")
			if err != nil {
				t.Error(err)
				return
			}
			if inserted {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning claim, got %d", wins)
	}
}

func TestPublisherRepo_HealthTransitions(t *testing.T) {
	db := newTestDB(t)
	repo := NewPublisherRepository(db)

	if err := repo.UpsertPublisher("lol", "League of Legends", "rss", true); err != nil {
		t.Fatal(err)
	}

	p, err := repo.GetPublisher("lol")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != "active" {
		t.Errorf("expected initial status active, got %q", p.Status)
	}
	if p.LastSuccessAt != nil {
		t.Error("expected no last_success_at before first poll")
	}

	next := time.Now().UTC().Add(30 * time.Minute)
	if err := repo.MarkSuccess("lol", next); err != nil {
		t.Fatal(err)
	}

	p, err = repo.GetPublisher("lol")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != "active" {
		t.Errorf("expected active after success, got %q", p.Status)
	}
	if p.LastSuccessAt == nil {
		t.Fatal("expected last_success_at after success")
	}
	successAt := *p.LastSuccessAt

	if err := repo.MarkFailure("lol", "connection refused", next); err != nil {
		t.Fatal(err)
	}

	p, err = repo.GetPublisher("lol")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != "error" {
		t.Errorf("expected error status after failure, got %q", p.Status)
	}
	if p.LastError != "connection refused" {
		t.Errorf("expected recorded cause, got %q", p.LastError)
	}
	// A transient outage does not erase evidence of prior good operation.
	if p.LastSuccessAt == nil || !p.LastSuccessAt.Equal(successAt) {
		t.Errorf("expected last_success_at unchanged, got %v", p.LastSuccessAt)
	}

	if err := repo.MarkSuccess("lol", next); err != nil {
		t.Fatal(err)
	}
	p, err = repo.GetPublisher("lol")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != "active" || p.LastError != "" {
		t.Errorf("expected recovery to clear error state, got status=%q error=%q", p.Status, p.LastError)
	}
}

func TestSubscriptionRepo_GetEnabled(t *testing.T) {
	db := newTestDB(t)
	seedPublisher(t, db, "lol")
	seedPublisher(t, db, "cs2")
	repo := NewSubscriptionRepository(db)

	subs := []Subscription{
		{ID: "sub-1", PublisherID: "lol", SubscriberID: "guild-1", Channel: "c1", Filters: []string{"all"}, Enabled: true},
		{ID: "sub-2", PublisherID: "lol", SubscriberID: "guild-2", Channel: "c2", Filters: []string{"patch", "hotfix"}, Enabled: false},
		{ID: "sub-3", PublisherID: "cs2", SubscriberID: "guild-3", Channel: "c3", Filters: []string{"event"}, Enabled: true},
	}
	for _, sub := range subs {
		if err := repo.UpsertSubscription(sub); err != nil {
			t.Fatal(err)
		}
	}

	enabled, err := repo.GetEnabled("lol")
	if err != nil {
		t.Fatal(err)
	}
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled subscription for lol, got %d", len(enabled))
	}
	if enabled[0].ID != "sub-1" {
		t.Errorf("expected sub-1, got %q", enabled[0].ID)
	}
	if len(enabled[0].Filters) != 1 || enabled[0].Filters[0] != "all" {
		t.Errorf("expected filters round trip, got %v", enabled[0].Filters)
	}
}
