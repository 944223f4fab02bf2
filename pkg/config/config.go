// Package config provides a reusable loader for dnaindex's configuration
// files and environment variables. It is versioned so that applications
// can depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dnaindex/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for one dnaindex deployment,
// mirroring the YAML files under cmd/dnaindexd/config.
type Config struct {
	Chain struct {
		Family        string `mapstructure:"family" json:"family"`
		StartingBlock uint64 `mapstructure:"starting_block" json:"starting_block"`
		SegmentSize   uint64 `mapstructure:"segment_size" json:"segment_size"`
		GroupSize     uint64 `mapstructure:"group_size" json:"group_size"`
	} `mapstructure:"chain" json:"chain"`

	Provider struct {
		Endpoint     string        `mapstructure:"endpoint" json:"endpoint"`
		PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
		RateLimit    float64       `mapstructure:"rate_limit" json:"rate_limit"`
		RateBurst    int           `mapstructure:"rate_burst" json:"rate_burst"`
		Workers      int           `mapstructure:"workers" json:"workers"`
	} `mapstructure:"provider" json:"provider"`

	ObjectStore struct {
		Endpoint  string `mapstructure:"endpoint" json:"endpoint"`
		Bucket    string `mapstructure:"bucket" json:"bucket"`
		AccessKey string `mapstructure:"access_key" json:"access_key"`
		SecretKey string `mapstructure:"secret_key" json:"secret_key"`
		UseSSL    bool   `mapstructure:"use_ssl" json:"use_ssl"`
	} `mapstructure:"object_store" json:"object_store"`

	Server struct {
		StatusAddr        string        `mapstructure:"status_addr" json:"status_addr"`
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`
		IdleBackoff       time.Duration `mapstructure:"idle_backoff" json:"idle_backoff"`
	} `mapstructure:"server" json:"server"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	// Best-effort: a missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/dnaindexd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	setDefaults()
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("DNAINDEX")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the DNAINDEX_ENV environment
// variable, falling back to the default config alone.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("DNAINDEX_ENV", ""))
}

func setDefaults() {
	viper.SetDefault("chain.family", "ethereum")
	viper.SetDefault("chain.segment_size", 1000)
	viper.SetDefault("chain.group_size", 10)
	viper.SetDefault("provider.poll_interval", 4*time.Second)
	viper.SetDefault("provider.rate_limit", 20.0)
	viper.SetDefault("provider.rate_burst", 10)
	viper.SetDefault("provider.workers", 4)
	viper.SetDefault("object_store.use_ssl", false)
	viper.SetDefault("server.status_addr", ":8090")
	viper.SetDefault("server.heartbeat_interval", 10*time.Second)
	viper.SetDefault("server.idle_backoff", 2*time.Second)
	viper.SetDefault("logging.level", "info")
}
