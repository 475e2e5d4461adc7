package source

import (
	"context"

	"github.com/master00J/patchwire/app/news"
)

// Adapter is the single capability every publisher variant implements.
// Each call is independent: adapters hold static configuration only,
// never a mutable fetch cursor.
//
// Contract: items missing required fields are omitted, never returned
// partially constructed. A fetch or parse failure is reported as an
// error so the scheduler can mark the publisher unhealthy; adapters
// never panic into the polling loop.
type Adapter interface {
	PublisherID() string
	FetchLatestNews(ctx context.Context) ([]news.Item, error)
}
