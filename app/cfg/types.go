package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	PublishersDir     string
	SubscriptionsFile string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Destination configuration
	TelegramToken string
	DeliveryRate  float64
	DeliveryBurst int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
