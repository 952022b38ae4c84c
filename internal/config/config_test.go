package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != DefaultHost {
		t.Errorf("Expected host %s, got %s", DefaultHost, cfg.Server.Host)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("Expected port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Server.MaxClients != DefaultMaxClients {
		t.Errorf("Expected max clients %d, got %d", DefaultMaxClients, cfg.Server.MaxClients)
	}
	if cfg.Server.MaxRequestBytes != DefaultMaxRequestBytes {
		t.Errorf("Expected max request bytes %d, got %d", DefaultMaxRequestBytes, cfg.Server.MaxRequestBytes)
	}
	if cfg.Server.TunnelIdleTimeout != DefaultTunnelIdleTimeout {
		t.Errorf("Expected tunnel idle timeout %v, got %v", DefaultTunnelIdleTimeout, cfg.Server.TunnelIdleTimeout)
	}

	if cfg.Cache.MaxSizeBytes != DefaultMaxSizeBytes {
		t.Errorf("Expected cache max size %d, got %d", DefaultMaxSizeBytes, cfg.Cache.MaxSizeBytes)
	}
	if cfg.Cache.MaxElementSizeBytes != DefaultMaxElementSizeBytes {
		t.Errorf("Expected cache max element size %d, got %d", DefaultMaxElementSizeBytes, cfg.Cache.MaxElementSizeBytes)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected log level 'info', got %s", cfg.Logging.Level)
	}

	if cfg.Engineering.ShowNerdStats != false {
		t.Error("Expected ShowNerdStats to be false by default")
	}
}

func TestLoadConfig_WithoutFile(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Expected default port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Expected default host %s, got %s", DefaultHost, cfg.Server.Host)
	}
}

func TestLoadConfig_WithEnvironmentVariables(t *testing.T) {
	testEnvVars := map[string]string{
		"PROXY_SERVER_PORT":        "9090",
		"PROXY_SERVER_HOST":        "127.0.0.1",
		"PROXY_SERVER_MAX_CLIENTS": "800",
		"PROXY_LOGGING_LEVEL":      "debug",
	}

	for key, value := range testEnvVars {
		os.Setenv(key, value)
	}
	defer func() {
		for key := range testEnvVars {
			os.Unsetenv(key)
		}
	}()

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load with env vars failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090 from env var, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1 from env var, got %s", cfg.Server.Host)
	}
	if cfg.Server.MaxClients != 800 {
		t.Errorf("Expected max clients 800 from env var, got %d", cfg.Server.MaxClients)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug from env var, got %s", cfg.Logging.Level)
	}
}

func TestApplyPortOverride(t *testing.T) {
	cfg := DefaultConfig()
	ApplyPortOverride(cfg, 9999)

	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999 after override, got %d", cfg.Server.Port)
	}
}

func TestConfigTypes(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.TunnelIdleTimeout.String() == "" {
		t.Error("TunnelIdleTimeout should be a valid duration")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		t.Error("ShutdownTimeout should be positive")
	}
	if cfg.Cache.MaxSizeBytes <= cfg.Cache.MaxElementSizeBytes {
		t.Error("Cache max size should exceed max element size")
	}
}

func TestDefaultConfig_Constants(t *testing.T) {
	if DefaultMaxSizeBytes != 200*1024*1024 {
		t.Errorf("Expected MaxSizeBytes 200MiB, got %d", DefaultMaxSizeBytes)
	}
	if DefaultMaxElementSizeBytes != 10*1024*1024 {
		t.Errorf("Expected MaxElementSizeBytes 10MiB, got %d", DefaultMaxElementSizeBytes)
	}
	if DefaultMaxRequestBytes != 4096 {
		t.Errorf("Expected MaxRequestBytes 4096, got %d", DefaultMaxRequestBytes)
	}
	if DefaultMaxClients != 400 {
		t.Errorf("Expected MaxClients 400, got %d", DefaultMaxClients)
	}
	if DefaultTunnelIdleTimeout != 30*time.Second {
		t.Errorf("Expected TunnelIdleTimeout 30s, got %v", DefaultTunnelIdleTimeout)
	}
	if DefaultPort != 8080 {
		t.Errorf("Expected DefaultPort 8080, got %d", DefaultPort)
	}
}
