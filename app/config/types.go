package config

// Publisher configuration types, loaded from per-publisher YAML files
// in the publishers directory.

type Publisher struct {
	Name     string   `yaml:"name"`
	ID       string   // Derived from filename (without .yml extension)
	Source   Source   `yaml:"source"`
	Settings Settings `yaml:"settings"`
}

type Source struct {
	Type  string `yaml:"type"` // "rss" or "steam"
	URL   string `yaml:"url"`
	AppID int    `yaml:"app_id"` // Steam application id
	Count int    `yaml:"count"`  // Steam item count per fetch
}

type Settings struct {
	Enabled      bool `yaml:"enabled"`
	PollInterval int  `yaml:"poll_interval"` // seconds
	Timeout      int  `yaml:"timeout"`       // seconds
	MaxItems     int  `yaml:"max_items"`
}

// Subscription registrations, loaded once at startup from the
// subscriptions file. The CRUD surface that owns these lives outside
// this service; the pipeline only ever reads enabled subscriptions.

type Subscription struct {
	ID           string   `yaml:"id"`
	PublisherID  string   `yaml:"publisher"`
	SubscriberID string   `yaml:"subscriber"`
	Channel      string   `yaml:"channel"`
	NotifyRoleID string   `yaml:"notify_role"`
	Filters      []string `yaml:"filters"`
	Enabled      bool     `yaml:"enabled"`
}

type subscriptionsFile struct {
	Subscriptions []Subscription `yaml:"subscriptions"`
}
