package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/master00J/patchwire/app/config"
	"github.com/master00J/patchwire/app/database"
	"github.com/master00J/patchwire/app/delivery"
	"github.com/master00J/patchwire/app/news"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	return db
}

func testPublisher(id string) *config.Publisher {
	return &config.Publisher{
		ID:   id,
		Name: id,
		Source: config.Source{
			Type: "rss",
			URL:  "https://example.com/feed.xml",
		},
		Settings: config.Settings{
			Enabled:      true,
			PollInterval: 1800,
			Timeout:      5,
			MaxItems:     50,
		},
	}
}

// fakeAdapter serves a fixed result instead of hitting the network.
type fakeAdapter struct {
	publisherID string
	items       []news.Item
	err         error
}

func (f *fakeAdapter) PublisherID() string { return f.publisherID }

func (f *fakeAdapter) FetchLatestNews(ctx context.Context) ([]news.Item, error) {
	return f.items, f.err
}

type recordingNotifier struct {
	sends []string
}

func (r *recordingNotifier) SendMessage(ctx context.Context, channel string, msg delivery.Message) (string, error) {
	r.sends = append(r.sends, channel)
	return fmt.Sprintf("msg-%d", len(r.sends)), nil
}

func (r *recordingNotifier) CheckAccess(ctx context.Context, channel string) error { return nil }

type pollFixture struct {
	db       *database.DB
	pubRepo  database.PublisherRepository
	itemRepo database.ItemRepository
	engine   *delivery.Engine
	notifier *recordingNotifier
}

func newPollFixture(t *testing.T, publisherIDs ...string) *pollFixture {
	t.Helper()

	db := newTestDB(t)
	pubRepo := database.NewPublisherRepository(db)
	for _, id := range publisherIDs {
		if err := pubRepo.UpsertPublisher(id, id, "rss", true); err != nil {
			t.Fatal(err)
		}
	}

	notifier := &recordingNotifier{}
	engine := delivery.NewEngine(database.NewSubscriptionRepository(db), database.NewDeliveryRepository(db), notifier, nil)

	return &pollFixture{
		db:       db,
		pubRepo:  pubRepo,
		itemRepo: database.NewItemRepository(db),
		engine:   engine,
		notifier: notifier,
	}
}

func (f *pollFixture) subscribe(t *testing.T, publisherID, subscriberID string, filters []string) {
	t.Helper()
	err := database.NewSubscriptionRepository(f.db).UpsertSubscription(database.Subscription{
		ID:           fmt.Sprintf("sub-%s-%s", publisherID, subscriberID),
		PublisherID:  publisherID,
		SubscriberID: subscriberID,
		Channel:      "chan-" + subscriberID,
		Filters:      filters,
		Enabled:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPollPublisherTask_Execute(t *testing.T) {
	fixture := newPollFixture(t, "lol")
	fixture.subscribe(t, "lol", "guild-1", []string{"all"})

	adapter := &fakeAdapter{
		publisherID: "lol",
		items: []news.Item{
			{PublisherID: "lol", ExternalID: "a1", Title: "Patch 14.3", Type: news.TypePatch},
			{PublisherID: "lol", ExternalID: "a2", Title: "Lunar Festival", Type: news.TypeEvent},
		},
	}

	task := NewPollPublisherTask(testPublisher("lol"), adapter, fixture.pubRepo, fixture.itemRepo, fixture.engine)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	count, err := fixture.itemRepo.GetItemCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 stored items, got %d", count)
	}
	if len(fixture.notifier.sends) != 2 {
		t.Errorf("expected 2 deliveries, got %d", len(fixture.notifier.sends))
	}

	record, err := fixture.pubRepo.GetPublisher("lol")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != "active" || record.LastSuccessAt == nil {
		t.Errorf("expected healthy publisher after poll, got status=%q", record.Status)
	}
	if record.NextPollAt == nil || !record.NextPollAt.After(time.Now().UTC()) {
		t.Error("expected next poll scheduled in the future")
	}
}

func TestPollPublisherTask_RepeatedPollDeliversOnce(t *testing.T) {
	fixture := newPollFixture(t, "lol")
	fixture.subscribe(t, "lol", "guild-1", []string{"all"})

	adapter := &fakeAdapter{
		publisherID: "lol",
		items: []news.Item{
			{PublisherID: "lol", ExternalID: "a1", Title: "Patch 14.3", Type: news.TypePatch},
		},
	}

	for i := 0; i < 3; i++ {
		task := NewPollPublisherTask(testPublisher("lol"), adapter, fixture.pubRepo, fixture.itemRepo, fixture.engine)
		if err := task.Execute(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	count, err := fixture.itemRepo.GetItemCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored item across repeated polls, got %d", count)
	}
	if len(fixture.notifier.sends) != 1 {
		t.Errorf("expected exactly 1 delivery across repeated polls, got %d", len(fixture.notifier.sends))
	}
}

func TestPollPublisherTask_FetchFailure(t *testing.T) {
	fixture := newPollFixture(t, "lol", "cs2")

	// A prior success so the failure has something to preserve.
	seedNext := time.Now().UTC().Add(time.Hour)
	if err := fixture.pubRepo.MarkSuccess("lol", seedNext); err != nil {
		t.Fatal(err)
	}
	before, err := fixture.pubRepo.GetPublisher("lol")
	if err != nil {
		t.Fatal(err)
	}

	failing := &fakeAdapter{publisherID: "lol", err: errors.New("connection refused")}
	task := NewPollPublisherTask(testPublisher("lol"), failing, fixture.pubRepo, fixture.itemRepo, fixture.engine)

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("expected poll to report the fetch failure")
	}

	record, err := fixture.pubRepo.GetPublisher("lol")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != "error" {
		t.Errorf("expected error status, got %q", record.Status)
	}
	if record.LastError == "" {
		t.Error("expected recorded failure cause")
	}
	if record.LastSuccessAt == nil || !record.LastSuccessAt.Equal(*before.LastSuccessAt) {
		t.Errorf("expected last_success_at preserved through failure, got %v", record.LastSuccessAt)
	}

	// A sibling publisher polls normally in the same cycle.
	healthy := &fakeAdapter{
		publisherID: "cs2",
		items: []news.Item{
			{PublisherID: "cs2", ExternalID: "b1", Title: "Release Notes", Type: news.TypePatch},
		},
	}
	siblingTask := NewPollPublisherTask(testPublisher("cs2"), healthy, fixture.pubRepo, fixture.itemRepo, fixture.engine)
	if err := siblingTask.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	sibling, err := fixture.pubRepo.GetPublisher("cs2")
	if err != nil {
		t.Fatal(err)
	}
	if sibling.Status != "active" {
		t.Errorf("expected sibling unaffected by failure, got status=%q", sibling.Status)
	}
}

func TestPollPublisherTask_DropsInvalidItems(t *testing.T) {
	fixture := newPollFixture(t, "lol")

	adapter := &fakeAdapter{
		publisherID: "lol",
		items: []news.Item{
			{PublisherID: "lol", ExternalID: "a1", Title: "Patch 14.3", Type: news.TypePatch},
			{PublisherID: "lol", ExternalID: "", Title: "No external id"},
		},
	}

	task := NewPollPublisherTask(testPublisher("lol"), adapter, fixture.pubRepo, fixture.itemRepo, fixture.engine)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	count, err := fixture.itemRepo.GetItemCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected invalid item dropped, got %d stored", count)
	}
}

func TestPollPublisherTask_NoIntraTickRetries(t *testing.T) {
	adapter := &fakeAdapter{publisherID: "lol"}
	task := NewPollPublisherTask(testPublisher("lol"), adapter, nil, nil, nil)

	if task.CanRetry() {
		t.Error("expected poll tasks to have no intra-tick retries")
	}
}

func TestPollPublisherTask_CancelledContext(t *testing.T) {
	fixture := newPollFixture(t, "lol")

	adapter := &fakeAdapter{publisherID: "lol"}
	task := NewPollPublisherTask(testPublisher("lol"), adapter, fixture.pubRepo, fixture.itemRepo, fixture.engine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation, got %v", err)
	}
}
