package source

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/master00J/patchwire/app/config"
	"github.com/master00J/patchwire/app/news"
)

// Registry maps publisher ids to adapter instances. New publisher
// variants are added by implementing Adapter and extending the
// constructor switch, not by pattern-matching on ad hoc shapes.
type Registry struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.PublisherID()] = adapter
}

func (r *Registry) Get(publisherID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[publisherID]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for publisher '%s'", publisherID)
	}
	return adapter, nil
}

// BuildAdapter constructs the adapter variant a publisher config calls
// for. The config is validated at load time, so an unknown type here is
// a programming error.
func BuildAdapter(publisher *config.Publisher, httpClient *http.Client, classifier *news.Classifier, userAgent string) (Adapter, error) {
	switch publisher.Source.Type {
	case "rss":
		return NewRSSAdapter(publisher, httpClient, classifier, userAgent), nil
	case "steam":
		return NewSteamAdapter(publisher, httpClient, classifier, userAgent), nil
	default:
		return nil, fmt.Errorf("unknown source type '%s' for publisher '%s'", publisher.Source.Type, publisher.ID)
	}
}
