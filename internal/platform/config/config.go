// Package config builds runtime configuration from environment variables so
// main stays lean. Config is constructed once at process start and passed by
// value into wiring; there is no ambient lookup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"amparo/internal/benefit/models"
	"amparo/internal/benefit/policy"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr        string
	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// Cooldowns is the per-type eligibility mapping, defaults overridden by
	// AMPARO_COOLDOWN_<TYPE>_MONTHS. The monthly-basket rule is disputed
	// between one and three months, so deployments settle it here.
	Cooldowns map[models.BenefitType]int

	// CountDeletedInEligibility decides whether soft-deleted deliveries
	// still anchor cooldown windows.
	CountDeletedInEligibility bool

	ShutdownTimeout time.Duration
}

// RedisConfig configures the optional history cache.
type RedisConfig struct {
	URL          string
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit trail sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables, applying defaults
// where unset. Cooldown overrides are validated for shape here; the policy
// package validates the complete mapping.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:            envOr("AMPARO_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("AMPARO_DATABASE_URL"),
		Cooldowns:       policy.DefaultCooldowns(),
		ShutdownTimeout: 10 * time.Second,
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("AMPARO_REDIS_URL"),
		TTL:          5 * time.Minute,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	if brokers := os.Getenv("AMPARO_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka = KafkaConfig{
			Brokers: strings.Split(brokers, ","),
			Topic:   envOr("AMPARO_KAFKA_AUDIT_TOPIC", "amparo.audit"),
		}
	}

	cfg.CountDeletedInEligibility = os.Getenv("AMPARO_COUNT_DELETED") == "true"

	for _, t := range models.AllBenefitTypes {
		key := "AMPARO_COOLDOWN_" + string(t) + "_MONTHS"
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		months, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", key, err)
		}
		cfg.Cooldowns[t] = months
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
