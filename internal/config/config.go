package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Empty PGDSN selects the in-memory store.
	PGDSN         string
	RunMigrations bool

	RedisAddr        string
	RedisPassword    string
	RedisInboxPrefix string
	RedisInboxSize   int

	KafkaBrokers     []string
	KafkaNotifyTopic string

	JWTSecret        string
	AllowAuthHeaders bool

	DefaultRadiusKm        float64
	MaxPhotosPerAssignment int
	NotifyQueueSize        int

	// Empty OSRMURL keeps straight-line walking ETAs.
	OSRMURL     string
	ETACacheTTL time.Duration

	LogLevel string
}

// ConsumerConfig drives cmd/consumer, which moves notifications from Kafka
// into the Redis inbox.
type ConsumerConfig struct {
	KafkaBrokers     []string
	KafkaNotifyTopic string
	KafkaGroup       string

	RedisAddr        string
	RedisPassword    string
	RedisInboxPrefix string
	RedisInboxSize   int

	MetricsAddr string
	LogLevel    string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:               ":8080",
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           10 * time.Second,
		IdleTimeout:            120 * time.Second,
		ShutdownTimeout:        15 * time.Second,
		RedisInboxPrefix:       "notifications:",
		RedisInboxSize:         100,
		KafkaNotifyTopic:       "walk-notifications",
		DefaultRadiusKm:        5,
		MaxPhotosPerAssignment: 10,
		NotifyQueueSize:        1024,
		ETACacheTTL:            10 * time.Minute,
		LogLevel:               "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisInboxPrefix, "REDIS_INBOX_PREFIX")
	setIntFromEnv(&cfg.RedisInboxSize, "REDIS_INBOX_SIZE", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaNotifyTopic, "KAFKA_NOTIFY_TOPIC")

	cfg.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.AllowAuthHeaders = strings.EqualFold(os.Getenv("AUTH_ALLOW_HEADERS"), "true")

	setFloatFromEnv(&cfg.DefaultRadiusKm, "MATCHER_DEFAULT_RADIUS_KM", &errs)
	setIntFromEnv(&cfg.MaxPhotosPerAssignment, "MAX_PHOTOS_PER_ASSIGNMENT", &errs)
	setIntFromEnv(&cfg.NotifyQueueSize, "NOTIFY_QUEUE_SIZE", &errs)
	cfg.OSRMURL = strings.TrimSpace(os.Getenv("OSRM_URL"))
	setDurationFromEnv(&cfg.ETACacheTTL, "ETA_CACHE_TTL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.JWTSecret == "" && !cfg.AllowAuthHeaders {
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET is required unless AUTH_ALLOW_HEADERS=true"))
	}
	if cfg.DefaultRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_DEFAULT_RADIUS_KM must be > 0"))
	}
	if cfg.MaxPhotosPerAssignment <= 0 {
		errs = append(errs, fmt.Errorf("MAX_PHOTOS_PER_ASSIGNMENT must be > 0"))
	}
	if cfg.NotifyQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_QUEUE_SIZE must be > 0"))
	}
	if cfg.RedisInboxSize <= 0 {
		errs = append(errs, fmt.Errorf("REDIS_INBOX_SIZE must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		KafkaBrokers:     []string{"localhost:9092"},
		KafkaNotifyTopic: "walk-notifications",
		KafkaGroup:       "walk-matching-inbox",
		RedisAddr:        "localhost:6379",
		RedisInboxPrefix: "notifications:",
		RedisInboxSize:   100,
		MetricsAddr:      ":2112",
		LogLevel:         "info",
	}
	var errs []error

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaNotifyTopic, "KAFKA_NOTIFY_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisInboxPrefix, "REDIS_INBOX_PREFIX")
	setIntFromEnv(&cfg.RedisInboxSize, "REDIS_INBOX_SIZE", &errs)
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must name at least one broker"))
	}
	if cfg.RedisInboxSize <= 0 {
		errs = append(errs, fmt.Errorf("REDIS_INBOX_SIZE must be > 0"))
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

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
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
