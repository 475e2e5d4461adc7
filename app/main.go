package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/master00J/patchwire/app/api"
	"github.com/master00J/patchwire/app/cfg"
	"github.com/master00J/patchwire/app/config"
	"github.com/master00J/patchwire/app/database"
	"github.com/master00J/patchwire/app/delivery"
	"github.com/master00J/patchwire/app/news"
	"github.com/master00J/patchwire/app/source"
	"github.com/master00J/patchwire/app/tasks"
	"github.com/master00J/patchwire/app/telegram"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appConfig.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Patchwire", "version", appConfig.Version)

	db, err := database.NewConnection(appConfig.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appConfig.DBPath, "migration_version", version, "dirty", dirty)

	// Load publisher configurations
	configCache := config.NewCache(appConfig.PublishersDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load publisher configurations", "error", err)
		os.Exit(1)
	}
	publishers := configCache.GetPublishers()
	slog.Info("Publisher configurations loaded", "count", len(publishers))

	subscriptions, err := config.LoadSubscriptions(appConfig.SubscriptionsFile)
	if err != nil {
		slog.Error("Failed to load subscriptions", "error", err)
		os.Exit(1)
	}
	slog.Info("Subscription registrations loaded", "count", len(subscriptions))

	// Initialize repositories
	pubRepo := database.NewPublisherRepository(db)
	itemRepo := database.NewItemRepository(db)
	subRepo := database.NewSubscriptionRepository(db)
	deliveryRepo := database.NewDeliveryRepository(db)

	// Register publishers and subscriptions in the database
	registeredCount := 0
	for _, publisher := range publishers {
		err := pubRepo.UpsertPublisher(publisher.ID, publisher.Name, publisher.Source.Type, publisher.Settings.Enabled)
		if err != nil {
			slog.Warn("Failed to register publisher", "publisher", publisher.ID, "error", err)
			continue
		}
		registeredCount++
	}
	slog.Info("Publishers registered", "registered", registeredCount, "total", len(publishers))

	for _, sub := range subscriptions {
		if _, err := configCache.GetPublisher(sub.PublisherID); err != nil {
			slog.Warn("Subscription references unknown publisher, skipping", "subscription", sub.ID, "publisher", sub.PublisherID)
			continue
		}
		err := subRepo.UpsertSubscription(database.Subscription{
			ID:           sub.ID,
			PublisherID:  sub.PublisherID,
			SubscriberID: sub.SubscriberID,
			Channel:      sub.Channel,
			NotifyRoleID: sub.NotifyRoleID,
			Filters:      sub.Filters,
			Enabled:      sub.Enabled,
		})
		if err != nil {
			slog.Warn("Failed to register subscription", "subscription", sub.ID, "error", err)
		}
	}

	// Build source adapters
	httpClient := &http.Client{Timeout: 60 * time.Second}
	classifier := news.NewClassifier()
	registry := source.NewRegistry()
	for _, publisher := range publishers {
		adapter, err := source.BuildAdapter(publisher, httpClient, classifier, appConfig.UserAgent)
		if err != nil {
			slog.Error("Failed to build source adapter", "publisher", publisher.ID, "error", err)
			os.Exit(1)
		}
		registry.Register(adapter)
	}

	// Destination notifier
	var notifier delivery.Notifier
	if appConfig.TelegramToken != "" {
		tgNotifier, err := telegram.New(appConfig.TelegramToken)
		if err != nil {
			slog.Error("Failed to initialize telegram notifier", "error", err)
			os.Exit(1)
		}
		notifier = tgNotifier
		slog.Info("Telegram destination configured")
	} else {
		notifier = delivery.NewLogNotifier()
		slog.Warn("No destination configured, deliveries will be logged only")
	}

	limiter := rate.NewLimiter(rate.Limit(appConfig.DeliveryRate), appConfig.DeliveryBurst)
	engine := delivery.NewEngine(subRepo, deliveryRepo, notifier, limiter)

	// Probe destination channels up front so misconfigured subscriptions
	// surface in the log at startup instead of on first delivery.
	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 30*time.Second)
	for _, sub := range subscriptions {
		if !sub.Enabled {
			continue
		}
		if err := notifier.CheckAccess(checkCtx, sub.Channel); err != nil {
			slog.Warn("Destination channel check failed", "subscription", sub.ID, "channel", sub.Channel, "error", err)
		}
	}
	cancelCheck()

	// Initialize and start scheduler
	slog.Info("Starting background scheduler", "workers", appConfig.WorkerCount, "interval", appConfig.SchedulerInterval)
	scheduler := tasks.NewScheduler(configCache, registry, pubRepo, itemRepo, engine)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize HTTP server
	apiHandler := api.NewHandler(pubRepo, itemRepo, subRepo, deliveryRepo, scheduler)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Patchwire started")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
