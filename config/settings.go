package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// MonitorSettings holds the engine tunables. Every field has an env override.
type MonitorSettings struct {
	SweepInterval         time.Duration // SWEEP_INTERVAL_SECONDS
	IndicatorTimeout      time.Duration // SWEEP_INDICATOR_TIMEOUT_SECONDS
	SweepConcurrency      int           // SWEEP_CONCURRENCY
	SweepRetryAttempts    int           // SWEEP_RETRY_ATTEMPTS
	SweepRetryBackoff     time.Duration // SWEEP_RETRY_BACKOFF_MS
	LockTTL               time.Duration // INDICATOR_LOCK_TTL_SECONDS
	IndicatorFamiliesFile string        // INDICATOR_FAMILIES_FILE
	NotificationTopic     string        // NOTIFICATION_TOPIC
	FactTopic             string        // FACT_EVENTS_TOPIC
	SweepEnabled          bool          // SWEEP_ENABLED
}

func LoadMonitorSettings() MonitorSettings {
	return MonitorSettings{
		SweepInterval:         time.Duration(intFromEnv("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		IndicatorTimeout:      time.Duration(intFromEnv("SWEEP_INDICATOR_TIMEOUT_SECONDS", 20)) * time.Second,
		SweepConcurrency:      intFromEnv("SWEEP_CONCURRENCY", 4),
		SweepRetryAttempts:    intFromEnv("SWEEP_RETRY_ATTEMPTS", 3),
		SweepRetryBackoff:     time.Duration(intFromEnv("SWEEP_RETRY_BACKOFF_MS", 200)) * time.Millisecond,
		LockTTL:               time.Duration(intFromEnv("INDICATOR_LOCK_TTL_SECONDS", 30)) * time.Second,
		IndicatorFamiliesFile: stringFromEnv("INDICATOR_FAMILIES_FILE", "indicator_families.yaml"),
		NotificationTopic:     stringFromEnv("NOTIFICATION_TOPIC", "indicator-notifications"),
		FactTopic:             stringFromEnv("FACT_EVENTS_TOPIC", "indicator-fact-events"),
		SweepEnabled:          boolFromEnv("SWEEP_ENABLED", true),
	}
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func stringFromEnv(key string, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	default:
		return def
	}
}
