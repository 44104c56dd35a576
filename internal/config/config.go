package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {

	// Application configuration
	AppConfig struct {
		Port    int    `envconfig:"CADENZA_PORT"`
		Address string `envconfig:"CADENZA_ADDRESS"`
	}

	// Database configuration
	DatabaseConfig struct {
		DatabaseHost                      string `envconfig:"DB_HOST"`
		DatabaseUser                      string `envconfig:"DB_USER"`
		DatabasePassword                  string `envconfig:"DB_PASSWORD"`
		DatabaseName                      string `envconfig:"DB_NAME"`
		DatabasePort                      int32  `envconfig:"DB_PORT"`
		DatabasePoolMaxConnections        int32  `envconfig:"DB_MAX_CON"`
		DatabasePoolMinConnections        int32  `envconfig:"DB_POOL_MIN_CON"`
		DatabasePoolMaxConnectionLifetime int    `envconfig:"DB_POOL_MAX_LIFETIME"`
	}

	// RabbitMQ configuration
	RabbitMQConfig struct {
		RabbitMQUser    string `envconfig:"RABBITMQ_USER"`
		RabbitMQPass    string `envconfig:"RABBITMQ_PASSWORD"`
		RabbitMQAddress string `envconfig:"RABBITMQ_ADDRESS"`
		RabbitMQPort    int    `envconfig:"RABBITMQ_PORT"`
		Exchange        string `envconfig:"RABBITMQ_EXCHANGE" default:"metrics"`
	}

	// Redis configuration for the read-side aggregate cache
	RedisConfig struct {
		RedisAddress  string `envconfig:"REDIS_ADDRESS"`
		RedisPassword string `envconfig:"REDIS_PASSWORD"`
		RedisDB       int    `envconfig:"REDIS_DB"`
		CacheTTL      int    `envconfig:"REDIS_CACHE_TTL_SECONDS" default:"60"`
	}

	// External profile service used for region enrichment
	RegionServiceConfig struct {
		BaseURL        string `envconfig:"REGION_SERVICE_URL"`
		TimeoutSeconds int    `envconfig:"REGION_SERVICE_TIMEOUT" default:"3"`
	}

	// Consumer configuration
	ConsumerConfig struct {
		// Mode selects between one dispatcher per domain queue
		// ("domains") and a single firehose queue demultiplexed in
		// application code ("firehose"). Handler behavior is identical.
		Mode string `envconfig:"CONSUMER_MODE" default:"domains"`
		// When true, transient store failures are nacked with requeue
		// so the broker redelivers them. When false every handler
		// failure is nacked without requeue and the message is dropped.
		RequeueTransient      bool `envconfig:"CONSUMER_REQUEUE_TRANSIENT" default:"false"`
		HandlerTimeoutSeconds int  `envconfig:"CONSUMER_HANDLER_TIMEOUT" default:"30"`
		PrefetchCount         int  `envconfig:"CONSUMER_PREFETCH" default:"10"`
	}
}

// The LoadConfig function loads the env file specified and returns
// a valid configuration object ready for use
func LoadConfig() (*Config, error) {
	cfg := Config{}

	// 1. Attempt to load .env file.
	// We ignore the error so it doesn't crash if the file is missing.
	_ = godotenv.Load()

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("Failed to load environment variables: %v", err)
	}

	return &cfg, nil
}
