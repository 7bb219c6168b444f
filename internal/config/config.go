package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AgentConfig captures all tunable parameters for the dispatch agent.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup. Timing constants
// are configuration rather than literals so tests can run them accelerated.
type AgentConfig struct {
	DriverID string

	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BackendURL string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	PollInterval         time.Duration
	HeartbeatMinInterval time.Duration
	HeartbeatMinDistance float64 // meters
	OfferWindow          time.Duration
	PresentDebounce      time.Duration
	RedisplayDelay       time.Duration
	CountdownTick        time.Duration

	LogLevel      string
	RunMigrations bool
}

func defaultAgentConfig() AgentConfig {
	return AgentConfig{
		DriverID:             "driver-local",
		HTTPAddr:             ":8080",
		ReadTimeout:          5 * time.Second,
		WriteTimeout:         10 * time.Second,
		IdleTimeout:          120 * time.Second,
		ShutdownTimeout:      15 * time.Second,
		KafkaTopic:           "driver-locations",
		PollInterval:         10 * time.Second,
		HeartbeatMinInterval: 20 * time.Second,
		HeartbeatMinDistance: 100,
		OfferWindow:          120 * time.Second,
		PresentDebounce:      time.Second,
		RedisplayDelay:       2 * time.Second,
		CountdownTick:        time.Second,
		LogLevel:             "info",
	}
}

func LoadAgentConfig() (AgentConfig, error) {
	cfg := defaultAgentConfig()
	var errs []error

	setStringFromEnv(&cfg.DriverID, "DRIVER_ID")
	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.BackendURL = strings.TrimSpace(os.Getenv("BACKEND_URL"))

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setDurationFromEnv(&cfg.PollInterval, "POLL_INTERVAL", &errs)
	setDurationFromEnv(&cfg.HeartbeatMinInterval, "HEARTBEAT_MIN_INTERVAL", &errs)
	setFloatFromEnv(&cfg.HeartbeatMinDistance, "HEARTBEAT_MIN_DISTANCE_M", &errs)
	setDurationFromEnv(&cfg.OfferWindow, "OFFER_WINDOW", &errs)
	setDurationFromEnv(&cfg.PresentDebounce, "PRESENT_DEBOUNCE", &errs)
	setDurationFromEnv(&cfg.RedisplayDelay, "REDISPLAY_DELAY", &errs)
	setDurationFromEnv(&cfg.CountdownTick, "COUNTDOWN_TICK", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be > 0"))
	}
	if cfg.OfferWindow < cfg.CountdownTick {
		errs = append(errs, fmt.Errorf("OFFER_WINDOW must be >= COUNTDOWN_TICK"))
	}
	if cfg.HeartbeatMinDistance < 0 {
		errs = append(errs, fmt.Errorf("HEARTBEAT_MIN_DISTANCE_M must be >= 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
