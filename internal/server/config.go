package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/internal/notify"
)

const (
	defaultListenAddr       = ":8080"
	defaultGRPCListenAddr   = ":7000"
	defaultDatabaseURL      = "sqlite:///tmp/reservas.db"
	defaultAllowedOrigin    = "http://localhost:5173"
	defaultFrontendURL      = "http://localhost:5173"
	defaultPublicBaseURL    = "http://localhost:8080"
	defaultAMQPQueue        = "reservas.email"
	defaultKafkaTopic       = "reservas.email"
	defaultRequestTimeout   = 10 * time.Second
	defaultExpiryInterval   = time.Minute
	defaultDispatchInterval = 5 * time.Second
)

// Config aggregates runtime settings for the reservation daemon.
type Config struct {
	ListenAddr       string
	GRPCListenAddr   string
	DatabaseURL      string
	AutoMigrate      bool
	AllowedOrigins   []string
	JWTSecret        string
	JWTIssuer        string
	FrontendURL      string
	PublicBaseURL    string
	RequestTimeout   time.Duration
	PendingTTL       time.Duration
	ExpiryInterval   time.Duration
	DispatchInterval time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	Notify           notify.TransportConfig
}

// Validate fills defaults and rejects unusable values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.GRPCListenAddr = defaultIfEmpty(cfg.GRPCListenAddr, defaultGRPCListenAddr)
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.FrontendURL = defaultIfEmpty(cfg.FrontendURL, defaultFrontendURL)
	cfg.PublicBaseURL = defaultIfEmpty(cfg.PublicBaseURL, defaultPublicBaseURL)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ExpiryInterval <= 0 {
		cfg.ExpiryInterval = defaultExpiryInterval
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = defaultDispatchInterval
	}
	cfg.Notify.Kind = strings.ToLower(defaultIfEmpty(cfg.Notify.Kind, notify.TransportLog))
	cfg.Notify.AMQPQueue = defaultIfEmpty(cfg.Notify.AMQPQueue, defaultAMQPQueue)
	cfg.Notify.KafkaTopic = defaultIfEmpty(cfg.Notify.KafkaTopic, defaultKafkaTopic)

	if len(strings.TrimSpace(cfg.JWTSecret)) == 0 {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.PendingTTL < 0 {
		return fmt.Errorf("pending ttl must not be negative")
	}
	switch cfg.Notify.Kind {
	case notify.TransportLog:
	case notify.TransportWebhook:
		if strings.TrimSpace(cfg.Notify.WebhookURL) == "" {
			return fmt.Errorf("webhook url is required for the webhook transport")
		}
	case notify.TransportAMQP:
		if strings.TrimSpace(cfg.Notify.AMQPURL) == "" {
			return fmt.Errorf("amqp url is required for the amqp transport")
		}
	case notify.TransportKafka:
		if len(cfg.Notify.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka brokers are required for the kafka transport")
		}
	default:
		return fmt.Errorf("unknown notification transport %q", cfg.Notify.Kind)
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseList splits comma-delimited values into a trimmed slice.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
