package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Draft    DraftConfig
	Shipping ShippingConfig
	Kafka    KafkaConfig
	Checkout CheckoutConfig
}

type AppConfig struct {
	Name string
	Port string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	DraftTTL time.Duration
}

// DraftConfig selects where checkout drafts live: "pebble", "redis" or "memory".
type DraftConfig struct {
	Backend string
	Dir     string
}

type CarrierConfig struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type ShippingConfig struct {
	BaseURL   string          `yaml:"base_url"`
	APIKey    string          `yaml:"-"`
	Carriers  []CarrierConfig `yaml:"carriers"`
	TimeoutMS int             `yaml:"timeout_ms"`
}

func (c ShippingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type OriginConfig struct {
	LocationID string `yaml:"location_id"`
	City       string `yaml:"city"`
	Province   string `yaml:"province"`
}

type CheckoutConfig struct {
	MinQuantity    int          `yaml:"min_quantity"`
	MaxFileSize    int64        `yaml:"max_file_size_bytes"`
	DebounceMS     int          `yaml:"debounce_ms"`
	IdleMinutes    int          `yaml:"session_idle_minutes"`
	PaymentMethods []string     `yaml:"payment_methods"`
	FallbackOrigin OriginConfig `yaml:"fallback_origin"`
}

func (c CheckoutConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

func (c CheckoutConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleMinutes) * time.Minute
}

type fileConfig struct {
	Shipping ShippingConfig `yaml:"shipping"`
	Checkout CheckoutConfig `yaml:"checkout"`
}

var defaultCarriers = []CarrierConfig{
	{Code: "jne", Name: "JNE"},
	{Code: "pos", Name: "POS Indonesia"},
	{Code: "tiki", Name: "TIKI"},
	{Code: "jnt", Name: "J&T Express"},
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Name = "checkout-service"
	cfg.App.Port = "8080"
	cfg.Postgres.SSLMode = "disable"
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute
	cfg.Postgres.MigrationsPath = "migrations"
	cfg.Redis.DraftTTL = 7 * 24 * time.Hour
	cfg.Draft.Backend = "pebble"
	cfg.Draft.Dir = "data/drafts"
	cfg.Shipping.BaseURL = "https://api.rajaongkir.com/starter"
	cfg.Shipping.Carriers = defaultCarriers
	cfg.Shipping.TimeoutMS = 8000
	cfg.Kafka.Topic = "orders.submitted"
	cfg.Checkout.MinQuantity = 5
	cfg.Checkout.MaxFileSize = 5 << 20
	cfg.Checkout.DebounceMS = 500
	cfg.Checkout.IdleMinutes = 30
	cfg.Checkout.PaymentMethods = []string{"bank_transfer", "qris", "e_wallet"}
	cfg.Checkout.FallbackOrigin = OriginConfig{LocationID: "501", City: "Yogyakarta", Province: "DI Yogyakarta"}
	return cfg
}

// Load reads an optional .env file at envPath, then the environment, then
// the optional YAML file named by CHECKOUT_CONFIG.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := defaults()

	cfg.App.Port = getEnv("APP_PORT", cfg.App.Port)

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User = os.Getenv("DB_USER")
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", cfg.Postgres.SSLMode)
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", cfg.Postgres.MigrationsPath)

	var err error
	if cfg.Postgres.MaxConns, err = getEnvInt32("DB_MAX_CONNS", cfg.Postgres.MaxConns); err != nil {
		return nil, err
	}
	if cfg.Postgres.MinConns, err = getEnvInt32("DB_MIN_CONNS", cfg.Postgres.MinConns); err != nil {
		return nil, err
	}

	for key, value := range map[string]string{
		"DB_HOST":     cfg.Postgres.Host,
		"DB_USER":     cfg.Postgres.User,
		"DB_PASSWORD": cfg.Postgres.Password,
		"DB_NAME":     cfg.Postgres.DBName,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s is required", key)
		}
	}

	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.Draft.Backend = strings.ToLower(getEnv("DRAFT_BACKEND", cfg.Draft.Backend))
	cfg.Draft.Dir = getEnv("DRAFT_DIR", cfg.Draft.Dir)
	switch cfg.Draft.Backend {
	case "pebble", "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, errors.New("REDIS_ADDR is required when DRAFT_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unknown DRAFT_BACKEND %q", cfg.Draft.Backend)
	}

	cfg.Shipping.BaseURL = getEnv("SHIPPING_BASE_URL", cfg.Shipping.BaseURL)
	cfg.Shipping.APIKey = os.Getenv("SHIPPING_API_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	if path := os.Getenv("CHECKOUT_CONFIG"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if cfg.Checkout.MinQuantity < 1 {
		return nil, fmt.Errorf("checkout.min_quantity must be at least 1, got %d", cfg.Checkout.MinQuantity)
	}
	if len(cfg.Shipping.Carriers) == 0 {
		return nil, errors.New("shipping.carriers must not be empty")
	}

	return cfg, nil
}

// applyFile overlays the checkout and shipping sections of a YAML file.
// Keys absent from the file keep their current values.
func applyFile(cfg *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed open config file: %w", err)
	}
	defer file.Close()

	fc := fileConfig{Shipping: cfg.Shipping, Checkout: cfg.Checkout}
	fc.Shipping.Carriers = nil
	fc.Checkout.PaymentMethods = nil

	if err := yaml.NewDecoder(file).Decode(&fc); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}

	apiKey := cfg.Shipping.APIKey
	if len(fc.Shipping.Carriers) == 0 {
		fc.Shipping.Carriers = cfg.Shipping.Carriers
	}
	if len(fc.Checkout.PaymentMethods) == 0 {
		fc.Checkout.PaymentMethods = cfg.Checkout.PaymentMethods
	}
	cfg.Shipping = fc.Shipping
	cfg.Shipping.APIKey = apiKey
	cfg.Checkout = fc.Checkout

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvInt32(key string, fallback int32) (int32, error) {
	n, err := getEnvInt(key, int(fallback))
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}
