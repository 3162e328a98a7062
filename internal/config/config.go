package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	KafkaBrokers string
	NatsURL      string

	EventsTopic   string
	ConsumerGroup string

	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderTimeout time.Duration

	DeliveryTimeout  time.Duration
	SuspendThreshold int
	MatchWindow      time.Duration
	OutboxInterval   time.Duration
}

// fileConfig is the optional YAML overlay, used mostly to keep provider
// credentials out of the environment in local setups.
type fileConfig struct {
	DatabaseURL     string `yaml:"database_url"`
	RedisURL        string `yaml:"redis_url"`
	KafkaBrokers    string `yaml:"kafka_brokers"`
	NatsURL         string `yaml:"nats_url"`
	ProviderBaseURL string `yaml:"provider_base_url"`
	ProviderAPIKey  string `yaml:"provider_api_key"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:             getenv("PORT", "8084"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		NatsURL:          os.Getenv("NATS_URL"),
		EventsTopic:      getenv("EVENTS_TOPIC", "charge.events"),
		ConsumerGroup:    getenv("CONSUMER_GROUP", "charge-engine-dispatcher"),
		ProviderBaseURL:  os.Getenv("PROVIDER_BASE_URL"),
		ProviderAPIKey:   os.Getenv("PROVIDER_API_KEY"),
		ProviderTimeout:  8 * time.Second,
		DeliveryTimeout:  30 * time.Second,
		SuspendThreshold: 10,
		MatchWindow:      24 * time.Hour,
		OutboxInterval:   time.Second,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	merge(&c.DatabaseURL, fc.DatabaseURL)
	merge(&c.RedisURL, fc.RedisURL)
	merge(&c.KafkaBrokers, fc.KafkaBrokers)
	merge(&c.NatsURL, fc.NatsURL)
	merge(&c.ProviderBaseURL, fc.ProviderBaseURL)
	merge(&c.ProviderAPIKey, fc.ProviderAPIKey)
	return nil
}

func merge(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
