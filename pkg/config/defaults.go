package config

// Storage drivers.
const (
	StorageInMemory = "inmemory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Event stream providers.
const (
	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"
)

const (
	defaultStorageDriver = StorageInMemory
	defaultAPIListen     = ":8081"

	defaultClientAPITarget = "http://localhost:8081"

	defaultEventStreamProvider = EventStreamNop
	defaultEventStreamTopic    = "tracelens.analyses"

	defaultWorkers   = 3
	defaultQueueSize = 256
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Worker: WorkerConfig{
			Workers:   defaultWorkers,
			QueueSize: defaultQueueSize,
		},
	}
}
