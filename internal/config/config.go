package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultPort = 8080
	DefaultHost = "0.0.0.0"

	DefaultMaxClients        = 400
	DefaultMaxRequestBytes   = 4096
	DefaultTunnelIdleTimeout = 30 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second

	bytesMiB                      = 1 << 20
	DefaultMaxSizeBytes           = 200 * bytesMiB
	DefaultMaxElementSizeBytes    = 10 * bytesMiB
	DefaultFileWriteDelay         = 150 * time.Millisecond // Small delay to ensure file write is complete
	DefaultReloadDebounceInterval = 500 * time.Millisecond
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              DefaultHost,
			Port:              DefaultPort,
			MaxClients:        DefaultMaxClients,
			MaxRequestBytes:   DefaultMaxRequestBytes,
			TunnelIdleTimeout: DefaultTunnelIdleTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		Cache: CacheConfig{
			MaxSizeBytes:        DefaultMaxSizeBytes,
			MaxElementSizeBytes: DefaultMaxElementSizeBytes,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			LogDir:     "./logs",
			FileOutput: false,
			PrettyLogs: true,
		},
		Engineering: EngineeringConfig{
			ShowNerdStats: false,
			Profile:       false,
		},
	}
}

// Load loads configuration from file and environment variables
func Load(onConfigChange func()) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("PROXY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, check if we have PROXY_CONFIG_FILE env var
		if configFile := os.Getenv("PROXY_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			// lame debounce to avoid rapid-fire reloads
			now := time.Now()
			if now.Sub(lastReload) < DefaultReloadDebounceInterval {
				return // Ignore multiple rapid changes
			}
			lastReload = now

			// looks like on windows this event is triggered
			// before the file is fully written, not sure why
			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return cfg, nil
}

// ApplyPortOverride overrides the configured port, used when the port is
// passed as a CLI argument rather than via config file or env var.
func ApplyPortOverride(cfg *Config, port int) {
	cfg.Server.Port = port
}
