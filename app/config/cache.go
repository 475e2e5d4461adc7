package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/master00J/patchwire/app/news"
)

type Cache struct {
	publishersDir string
	cache         map[string]*Publisher
	mu            sync.RWMutex
}

func NewCache(publishersDir string) *Cache {
	return &Cache{
		publishersDir: publishersDir,
		cache:         make(map[string]*Publisher),
	}
}

func (c *Cache) Run() error {
	if _, err := os.Stat(c.publishersDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(c.publishersDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		publisherID := strings.TrimSuffix(fileName, ".yml")

		publisher, err := c.LoadPublisher(publisherID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Publisher configuration loaded", "publisher", publisherID, "type", publisher.Source.Type, "enabled", publisher.Settings.Enabled, "poll_interval", publisher.Settings.PollInterval)
	}

	return nil
}

func (c *Cache) LoadPublisher(publisherID string) (*Publisher, error) {
	configFile := filepath.Join(c.publishersDir, publisherID+".yml")

	publisher, err := c.parsePublisher(configFile)
	if err != nil {
		return nil, err
	}

	publisher.ID = publisherID

	if err := validatePublisher(publisher); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[publisher.ID] = publisher

	return publisher, nil
}

func (c *Cache) GetPublisher(publisherID string) (*Publisher, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	publisher, ok := c.cache[publisherID]
	if !ok {
		return nil, fmt.Errorf("publisher config with id '%s' not found", publisherID)
	}
	return publisher, nil
}

func (c *Cache) GetPublishers() map[string]*Publisher {
	c.mu.RLock()
	defer c.mu.RUnlock()

	publishersCopy := make(map[string]*Publisher, len(c.cache))
	for k, v := range c.cache {
		publishersCopy[k] = v
	}
	return publishersCopy
}

func (c *Cache) GetEnabledPublishers() map[string]*Publisher {
	c.mu.RLock()
	defer c.mu.RUnlock()

	enabled := make(map[string]*Publisher)
	for k, v := range c.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (c *Cache) parsePublisher(configFile string) (*Publisher, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	publisher := &Publisher{
		Settings: Settings{
			Enabled:      true,
			PollInterval: 1800,
			Timeout:      30,
			MaxItems:     50,
		},
	}

	if err := yaml.Unmarshal(data, publisher); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return publisher, nil
}

func validatePublisher(p *Publisher) error {
	switch p.Source.Type {
	case "rss":
		if p.Source.URL == "" {
			return fmt.Errorf("source url is required for rss publishers")
		}
	case "steam":
		if p.Source.AppID <= 0 {
			return fmt.Errorf("source app_id is required for steam publishers")
		}
	case "":
		return fmt.Errorf("source type is required")
	default:
		return fmt.Errorf("unknown source type '%s'", p.Source.Type)
	}

	if p.Settings.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if p.Settings.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

// LoadSubscriptions reads the subscription registrations file. A
// missing file is not an error: the pipeline simply has nobody to
// deliver to until subscriptions are provisioned.
func LoadSubscriptions(file string) ([]Subscription, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read subscriptions file: %w", err)
	}

	var parsed subscriptionsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse subscriptions YAML: %w", err)
	}

	for i, sub := range parsed.Subscriptions {
		if err := validateSubscription(sub); err != nil {
			return nil, fmt.Errorf("invalid subscription at index %d: %w", i, err)
		}
		if len(sub.Filters) == 0 {
			parsed.Subscriptions[i].Filters = []string{news.FilterAll}
		}
	}

	return parsed.Subscriptions, nil
}

func validateSubscription(s Subscription) error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.PublisherID == "" {
		return fmt.Errorf("publisher is required")
	}
	if s.SubscriberID == "" {
		return fmt.Errorf("subscriber is required")
	}
	if s.Channel == "" {
		return fmt.Errorf("channel is required")
	}

	for _, filter := range s.Filters {
		if filter == news.FilterAll {
			continue
		}
		if _, ok := news.ParseItemType(filter); !ok {
			return fmt.Errorf("unknown filter type '%s'", filter)
		}
	}

	return nil
}
