package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/master00J/patchwire/app/cfg"
	"github.com/master00J/patchwire/app/config"
	"github.com/master00J/patchwire/app/database"
	"github.com/master00J/patchwire/app/delivery"
	"github.com/master00J/patchwire/app/source"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler owns the polling timetable: a fixed-interval ticker feeds
// a bounded queue drained by a worker pool, with one task per
// publisher so a slow or failing publisher never blocks the others.
type Scheduler struct {
	cache       *config.Cache
	registry    *source.Registry
	pubRepo     database.PublisherRepository
	itemRepo    database.ItemRepository
	engine      *delivery.Engine
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	// inFlight guards against two concurrent polls of the same
	// publisher, which would race insert-if-absent on a cold backlog.
	inFlight   map[string]struct{}
	inFlightMu sync.Mutex
}

func NewScheduler(cache *config.Cache, registry *source.Registry,
	pubRepo database.PublisherRepository, itemRepo database.ItemRepository,
	engine *delivery.Engine) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	return &Scheduler{
		cache:       cache,
		registry:    registry,
		pubRepo:     pubRepo,
		itemRepo:    itemRepo,
		engine:      engine,
		interval:    time.Duration(c.SchedulerInterval) * time.Second,
		workerCount: c.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		inFlight:    make(map[string]struct{}),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// CheckForUpdates runs the equivalent of one scheduler tick on demand,
// for a single publisher or for all enabled ones. The next-poll gate
// is bypassed; the in-flight guard still applies.
func (s *Scheduler) CheckForUpdates(publisherID string) error {
	if publisherID == "" {
		for _, publisher := range s.cache.GetEnabledPublishers() {
			s.tryEnqueuePoll(publisher)
		}
		return nil
	}

	publisher, err := s.cache.GetPublisher(publisherID)
	if err != nil {
		return err
	}
	if !publisher.Settings.Enabled {
		return fmt.Errorf("publisher '%s' is disabled", publisherID)
	}

	s.tryEnqueuePoll(publisher)
	return nil
}

func (s *Scheduler) enqueueTasks() {
	publishers := s.cache.GetEnabledPublishers()
	if len(publishers) == 0 {
		slog.Debug("No enabled publisher configurations found")
		return
	}

	slog.Debug("Scheduling publisher polls", "count", len(publishers))

	for _, publisher := range publishers {
		record, err := s.pubRepo.GetPublisher(publisher.ID)
		if err != nil {
			slog.Warn("Failed to get publisher from database, skipping", "publisher", publisher.ID, "error", err)
			continue
		}
		if record == nil {
			slog.Warn("Publisher not registered in database, skipping", "publisher", publisher.ID)
			continue
		}

		now := time.Now().UTC()
		if record.NextPollAt != nil && record.NextPollAt.After(now) {
			slog.Debug("Publisher not due for polling yet", "publisher", publisher.ID, "next_poll_at", record.NextPollAt)
			continue
		}

		s.tryEnqueuePoll(publisher)
	}
}

func (s *Scheduler) tryEnqueuePoll(publisher *config.Publisher) {
	adapter, err := s.registry.Get(publisher.ID)
	if err != nil {
		slog.Warn("No adapter for publisher, skipping", "publisher", publisher.ID, "error", err)
		return
	}

	if !s.acquire(publisher.ID) {
		slog.Debug("Publisher poll already in flight, skipping", "publisher", publisher.ID)
		return
	}

	task := NewPollPublisherTask(publisher, adapter, s.pubRepo, s.itemRepo, s.engine)
	if err := s.EnqueueTask(task); err != nil {
		s.release(publisher.ID)
		slog.Warn("Failed to enqueue PollPublisherTask", "publisher", publisher.ID, "error", err)
	}
}

func (s *Scheduler) acquire(publisherID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	if _, busy := s.inFlight[publisherID]; busy {
		return false
	}
	s.inFlight[publisherID] = struct{}{}
	return true
}

func (s *Scheduler) release(publisherID string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, publisherID)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if task.GetType() == TaskTypePollPublisher {
		s.release(task.GetPublisherID())
	}

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "publisher", task.GetPublisherID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "publisher", task.GetPublisherID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		}
	}
}
