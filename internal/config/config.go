// Package config loads and validates the indexer's runtime configuration:
// queue sizing, parser pool sizing, chunking thresholds, queue storage
// locations, and search backend authentication.
package config

import (
	"errors"
	"time"
)

// Config is the top-level configuration struct for the indexer.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Pipeline  PipelineConfig `mapstructure:"pipeline"`
	Queue     QueueConfig    `mapstructure:"queue"`
	Backend   BackendConfig  `mapstructure:"backend"`
	Languages []string       `mapstructure:"languages"`
	Worker    WorkerConfig   `mapstructure:"worker"`
}

// PipelineConfig holds parser pool and batching knobs.
type PipelineConfig struct {
	CPUCores          int `mapstructure:"cpu_cores"`
	BatchSize         int `mapstructure:"batch_size"`
	MaxQueueSize      int `mapstructure:"max_queue_size"`
	MaxChunkSizeBytes int `mapstructure:"max_chunk_size_bytes"`
}

// QueueConfig locates the durable queue's on-disk store.
type QueueConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseDir string `mapstructure:"base_dir"`
}

// BackendConfig holds search backend connection and authentication settings.
// Exactly one of the three auth shapes below must be populated:
// cloud ID + API key, endpoint + API key, or endpoint + username/password.
type BackendConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	CloudID  string `mapstructure:"cloud_id"`
	APIKey   string `mapstructure:"api_key"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// WorkerConfig holds the indexer worker's polling and retry behavior.
type WorkerConfig struct {
	PollingInterval time.Duration `mapstructure:"polling_interval"`
	StaleTimeout    time.Duration `mapstructure:"stale_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidCPUCores indicates the parser pool size is negative.
	ErrInvalidCPUCores = errors.New("pipeline.cpu_cores must be non-negative")
	// ErrInvalidBatchSize indicates the bulk batch size is not positive.
	ErrInvalidBatchSize = errors.New("pipeline.batch_size must be positive")
	// ErrInvalidMaxQueueSize indicates the advisory queue cap is negative.
	ErrInvalidMaxQueueSize = errors.New("pipeline.max_queue_size must be non-negative")
	// ErrInvalidMaxChunkSize indicates the chunk skip threshold is not positive.
	ErrInvalidMaxChunkSize = errors.New("pipeline.max_chunk_size_bytes must be positive")
	// ErrMissingQueueDir indicates neither queue.dir nor queue.base_dir was set.
	ErrMissingQueueDir = errors.New("queue.dir or queue.base_dir must be set")
	// ErrMissingBackendEndpoint indicates neither an endpoint nor a cloud id was given.
	ErrMissingBackendEndpoint = errors.New("backend.endpoint or backend.cloud_id must be set")
	// ErrAmbiguousBackendAuth indicates more than one auth shape was configured.
	ErrAmbiguousBackendAuth = errors.New("backend auth must be exactly one of cloud-id+api-key, endpoint+api-key, endpoint+user/pass")
	// ErrMissingBackendAuth indicates no auth credentials were configured at all.
	ErrMissingBackendAuth = errors.New("backend auth requires an api_key or a username/password pair")
	// ErrInvalidPollingInterval indicates the polling interval is negative.
	ErrInvalidPollingInterval = errors.New("worker.polling_interval must be non-negative")
	// ErrInvalidStaleTimeout indicates the stale lease timeout is negative.
	ErrInvalidStaleTimeout = errors.New("worker.stale_timeout must be non-negative")
	// ErrInvalidMaxRetries indicates the max retry count is negative.
	ErrInvalidMaxRetries = errors.New("worker.max_retries must be non-negative")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}

	if err := c.validateQueue(); err != nil {
		return err
	}

	if err := c.validateBackend(); err != nil {
		return err
	}

	return c.validateWorker()
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.CPUCores < 0 {
		return ErrInvalidCPUCores
	}

	if c.Pipeline.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.Pipeline.MaxQueueSize < 0 {
		return ErrInvalidMaxQueueSize
	}

	if c.Pipeline.MaxChunkSizeBytes <= 0 {
		return ErrInvalidMaxChunkSize
	}

	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.Dir == "" && c.Queue.BaseDir == "" {
		return ErrMissingQueueDir
	}

	return nil
}

func (c *Config) validateBackend() error {
	if c.Backend.Endpoint == "" && c.Backend.CloudID == "" {
		return ErrMissingBackendEndpoint
	}

	shapes := 0

	if c.Backend.CloudID != "" && c.Backend.APIKey != "" {
		shapes++
	}

	if c.Backend.Endpoint != "" && c.Backend.APIKey != "" {
		shapes++
	}

	if c.Backend.Endpoint != "" && c.Backend.Username != "" && c.Backend.Password != "" {
		shapes++
	}

	if shapes > 1 {
		return ErrAmbiguousBackendAuth
	}

	if shapes == 0 {
		return ErrMissingBackendAuth
	}

	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.PollingInterval < 0 {
		return ErrInvalidPollingInterval
	}

	if c.Worker.StaleTimeout < 0 {
		return ErrInvalidStaleTimeout
	}

	if c.Worker.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	return nil
}
