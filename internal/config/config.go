package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/shopspring/decimal"

	"ledger/internal/domain"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	HTTPPort            int           `env:"LEDGER_HTTP_PORT" envDefault:"8080"`
	HTTPReadTimeout     time.Duration `env:"LEDGER_HTTP_READ_TIMEOUT" envDefault:"10s"`
	HTTPWriteTimeout    time.Duration `env:"LEDGER_HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPShutdownTimeout time.Duration `env:"LEDGER_HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSAllowedOrigins  []string      `env:"LEDGER_CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	DBConfig struct {
		Host            string        `env:"LEDGER_DB_HOST" envDefault:"localhost"`
		Port            int           `env:"LEDGER_DB_PORT" envDefault:"5432"`
		User            string        `env:"LEDGER_DB_USER" envDefault:"user"`
		Password        string        `env:"LEDGER_DB_PASSWORD" envDefault:"password"`
		Name            string        `env:"LEDGER_DB_NAME" envDefault:"ledger_db"`
		SSLMode         string        `env:"LEDGER_DB_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"LEDGER_DB_MAX_OPEN_CONNS" envDefault:"20"`
		MaxIdleConns    int           `env:"LEDGER_DB_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"LEDGER_DB_CONN_MAX_LIFETIME" envDefault:"30m"`
		ConnectRetries  int           `env:"LEDGER_DB_CONNECT_RETRIES" envDefault:"10"`
		RetryDelay      time.Duration `env:"LEDGER_DB_RETRY_DELAY" envDefault:"5s"`
	}
	MigrationsURL string `env:"LEDGER_MIGRATIONS_URL" envDefault:"file://migrations"`

	DefaultDailyLimit decimal.Decimal `env:"LEDGER_DEFAULT_DAILY_LIMIT" envDefault:"2000"`
	Timezone          string          `env:"LEDGER_TIMEZONE" envDefault:"UTC"`
	StrictAmounts     bool            `env:"STRICT_AMOUNTS" envDefault:"false"`

	KafkaBrokerURL                string `env:"KAFKA_BROKER_URL" envDefault:"localhost:9092"`
	KafkaLedgerEventsTopic        string `env:"KAFKA_LEDGER_EVENTS_TOPIC" envDefault:"ledger_events"`
	KafkaTransactionRequestsTopic string `env:"KAFKA_TRANSACTION_REQUESTS_TOPIC" envDefault:"ledger_transaction_requests"`
	KafkaConsumerGroup            string `env:"KAFKA_CONSUMER_GROUP" envDefault:"ledger-service-group"`
	KafkaConsumerEnabled          bool   `env:"KAFKA_CONSUMER_ENABLED" envDefault:"false"`
	KafkaEnsureTopics             bool   `env:"KAFKA_ENSURE_TOPICS" envDefault:"true"`

	OutboxEnabled      bool          `env:"OUTBOX_ENABLED" envDefault:"false"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"10"`
	OutboxMaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"5"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.DefaultDailyLimit.IsNegative() {
		return fmt.Errorf("LEDGER_DEFAULT_DAILY_LIMIT must not be negative")
	}
	if err := domain.ValidateAmountScale(c.DefaultDailyLimit); err != nil {
		return fmt.Errorf("LEDGER_DEFAULT_DAILY_LIMIT: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// Location is the time zone that defines a calendar day for the daily limit
// and for statement periods.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBConfig.User, c.DBConfig.Password),
		Host:     fmt.Sprintf("%s:%d", c.DBConfig.Host, c.DBConfig.Port),
		Path:     c.DBConfig.Name,
		RawQuery: "sslmode=" + c.DBConfig.SSLMode,
	}
	return u.String()
}

func (c *Config) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokerURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *Config) KafkaRequired() bool {
	return c.OutboxEnabled || c.KafkaConsumerEnabled
}
