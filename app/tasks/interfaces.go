package tasks

// TaskSchedulerInterface defines the interface for the polling
// orchestrator. Used by the main application and the HTTP surface to
// drive scheduled and on-demand publisher polls.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error

	// CheckForUpdates enqueues an immediate poll, bypassing the
	// next-poll gate. An empty publisherID polls every enabled
	// publisher.
	CheckForUpdates(publisherID string) error
}
