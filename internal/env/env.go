// Package env provides small environment-variable helpers for the
// handful of settings main.go needs before the logger (and therefore
// viper-based config loading) exists.
package env

import (
	"os"
	"strconv"
)

// GetEnvOrDefault returns the value of key, or fallback if unset.
func GetEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// GetEnvBoolOrDefault parses key as a bool, or returns fallback if
// unset or unparseable.
func GetEnvBoolOrDefault(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// GetEnvIntOrDefault parses key as an int, or returns fallback if
// unset or unparseable.
func GetEnvIntOrDefault(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
