package config

import "time"

// Config holds all configuration for the application
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Cache       CacheConfig       `yaml:"cache"`
	Engineering EngineeringConfig `yaml:"engineering"`
}

// ServerConfig holds listener and admission-control configuration
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	MaxClients        int           `yaml:"max_clients"`
	MaxRequestBytes   int           `yaml:"max_request_bytes"`
	TunnelIdleTimeout time.Duration `yaml:"tunnel_idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig holds the LRU response cache's size limits
type CacheConfig struct {
	MaxSizeBytes        int64 `yaml:"max_size_bytes"`
	MaxElementSizeBytes int64 `yaml:"max_element_size_bytes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Theme      string `yaml:"theme"`
	LogDir     string `yaml:"log_dir"`
	FileOutput bool   `yaml:"file_output"`
	PrettyLogs bool   `yaml:"pretty_logs"`
}

// EngineeringConfig holds development/debugging configuration
type EngineeringConfig struct {
	ShowNerdStats bool `yaml:"show_nerdstats"`
	Profile       bool `yaml:"profile"`
}
