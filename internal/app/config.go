package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/supplier-orders/pkg/httpmiddleware"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL); empty runs on in-memory storage" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (ORDERS_API_KEY_PEPPER)" flag:"api-key-pepper"`
	SeedFile     string `usage:"Fixture loaded into in-memory storage at startup" flag:"seed-file"`
	Redis        RedisConfig
	Drafts       DraftsConfig
	Kafka        KafkaConfig
	Notify       NotifyConfig
	RateLimit    RateLimitConfig
	CORS         httpmiddleware.CORSConfig
	Graceful     GracefulConfig
}

// RedisConfig points at the shared cache holding drafts and rate limit
// counters. Without an address both stay in process memory.
type RedisConfig struct {
	Addr string `usage:"Redis host:port or redis:// URL (ORDERS_REDIS_ADDR or REDIS_URL)" flag:"redis-addr"`
}

// DraftsConfig controls how long unsaved carts live.
type DraftsConfig struct {
	TTL           time.Duration `default:"24h" usage:"Lifetime of a draft after its last save; 0 keeps drafts until cleared"`
	SweepInterval time.Duration `default:"5m"  usage:"How often expired in-memory drafts are dropped"`
}

// KafkaConfig enables lifecycle event publishing. Without brokers events
// are only logged.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"order-events" usage:"Topic for order lifecycle events"`
}

// NotifyConfig tunes the event dispatcher.
type NotifyConfig struct {
	QueueSize       int           `default:"1024" usage:"Events buffered before new ones are dropped"`
	DeliveryTimeout time.Duration `default:"5s"   usage:"Upper bound for one event delivery"`
}

// RateLimitConfig controls the per-caller rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig reads .env when present, then environment variables, YAML
// config files and flags, and applies platform defaults.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/orders/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the standard variables hosting platforms set
// (DATABASE_URL, REDIS_URL, PORT) onto the ORDERS_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch {
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	case c.Drafts.TTL < 0:
		return errors.New("draft TTL must not be negative")
	case len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "":
		return errors.New("kafka topic is required when brokers are set")
	}
	return nil
}

// InMemory reports whether the ledger runs without PostgreSQL.
func (c *Config) InMemory() bool {
	return c.DatabaseURL == ""
}
