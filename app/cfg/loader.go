package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./patchwire.db" description:"Path to the SQLite database file"`

	// Application configuration
	PublishersDir     string `long:"publishers-dir" env:"PUBLISHERS_DIR" default:"./publishers" description:"Directory containing publisher configuration files"`
	SubscriptionsFile string `long:"subscriptions-file" env:"SUBSCRIPTIONS_FILE" default:"./subscriptions.yml" description:"YAML file with subscription registrations"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for publisher polling"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"1800" description:"Scheduler tick interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Destination configuration
	TelegramToken string  `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"Telegram bot token for the delivery destination (optional, log-only delivery when unset)"`
	DeliveryRate  float64 `long:"delivery-rate" env:"DELIVERY_RATE" default:"1" description:"Maximum destination sends per second"`
	DeliveryBurst int     `long:"delivery-burst" env:"DELIVERY_BURST" default:"3" description:"Destination send burst size"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Patchwire/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		PublishersDir:     raw.PublishersDir,
		SubscriptionsFile: raw.SubscriptionsFile,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		TelegramToken:     raw.TelegramToken,
		DeliveryRate:      raw.DeliveryRate,
		DeliveryBurst:     raw.DeliveryBurst,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
