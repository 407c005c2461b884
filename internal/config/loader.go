package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".semantic-code-search-indexer"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for indexer settings.
const envPrefix = "SEMANTIC_CODE_INDEXER"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Defaults mirror the compile-time constants named in the external
// interfaces: batch size, chunk skip threshold, poll interval, stale
// lease timeout, and max retries are all overridable via config file or
// environment but ship with sane defaults out of the box.
const (
	DefaultBatchSize         = 500
	DefaultMaxChunkSizeBytes = 1_000_000
	DefaultPollingInterval   = time.Second
	DefaultStaleTimeout      = 5 * time.Minute
	DefaultMaxRetries        = 3
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("pipeline.cpu_cores", 0) // 0 lets the parser pool pick runtime.NumCPU()/2
	viperCfg.SetDefault("pipeline.batch_size", DefaultBatchSize)
	viperCfg.SetDefault("pipeline.max_queue_size", 0) // 0 means no advisory cap
	viperCfg.SetDefault("pipeline.max_chunk_size_bytes", DefaultMaxChunkSizeBytes)

	viperCfg.SetDefault("queue.dir", "")
	viperCfg.SetDefault("queue.base_dir", "")

	viperCfg.SetDefault("backend.endpoint", "")
	viperCfg.SetDefault("backend.cloud_id", "")
	viperCfg.SetDefault("backend.api_key", "")
	viperCfg.SetDefault("backend.username", "")
	viperCfg.SetDefault("backend.password", "")

	viperCfg.SetDefault("languages", []string{})

	viperCfg.SetDefault("worker.polling_interval", DefaultPollingInterval)
	viperCfg.SetDefault("worker.stale_timeout", DefaultStaleTimeout)
	viperCfg.SetDefault("worker.max_retries", DefaultMaxRetries)
}
