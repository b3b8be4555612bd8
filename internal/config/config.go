// Package config loads process settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Prefix namespaces every variable, e.g. CLUBSHOP_HTTP_ADDR. The bare name
// (HTTP_ADDR) is accepted as a fallback.
const Prefix = "CLUBSHOP"

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ServiceName     string        `envconfig:"SERVICE_NAME" default:"clubshop"`
	Env             string        `envconfig:"ENV" default:"dev"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFile         string        `envconfig:"LOG_FILE"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	Store         string `envconfig:"STORE" default:"memory"`
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"clubshop"`

	// RedisAddr empty keeps idempotency keys in process memory.
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	// KafkaBrokers empty disables event forwarding.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"clubshop.events"`

	EventQueueSize      int           `envconfig:"EVENT_QUEUE_SIZE" default:"1024"`
	EventConcurrency    int           `envconfig:"EVENT_CONCURRENCY" default:"8"`
	EventHandlerTimeout time.Duration `envconfig:"EVENT_HANDLER_TIMEOUT" default:"30s"`

	MaxOrderTotal     decimal.Decimal `envconfig:"MAX_ORDER_TOTAL" default:"100000"`
	MaxLineItems      int             `envconfig:"MAX_LINE_ITEMS" default:"50"`
	LowStockThreshold int             `envconfig:"LOW_STOCK_THRESHOLD" default:"10"`
}

// Load reads the given .env files (or ./.env when none are named), then the
// environment. Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return Config{}, fmt.Errorf("config: load env files: %w", err)
	}

	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	c.KafkaBrokers = compact(c.KafkaBrokers)
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StoreMongo, c.Store))
	}
	if c.Store == StoreMongo && c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required when STORE=mongo"))
	}
	if !c.MaxOrderTotal.IsPositive() {
		errs = append(errs, errors.New("MAX_ORDER_TOTAL must be positive"))
	}
	if c.MaxLineItems <= 0 {
		errs = append(errs, errors.New("MAX_LINE_ITEMS must be positive"))
	}
	if c.LowStockThreshold < 0 {
		errs = append(errs, errors.New("LOW_STOCK_THRESHOLD cannot be negative"))
	}
	if c.EventQueueSize <= 0 || c.EventConcurrency <= 0 || c.EventHandlerTimeout <= 0 {
		errs = append(errs, errors.New("EVENT_QUEUE_SIZE, EVENT_CONCURRENCY and EVENT_HANDLER_TIMEOUT must be positive"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
