package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Name           string `yaml:"name"`
	Env            string `yaml:"env"`
	Port           string `yaml:"port"`
	LogLevel       string `yaml:"log_level"`
	Timezone       string `yaml:"timezone"`
	StaffTokenHash string `yaml:"staff_token_hash"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

type PricingConfig struct {
	TaxRate    decimal.Decimal `yaml:"tax_rate"`
	ServiceFee decimal.Decimal `yaml:"service_fee"`
	Currency   string          `yaml:"currency"`
}

type DashboardConfig struct {
	DisplayLimit int `yaml:"display_limit"`
}

type PaymentConfig struct {
	GatewayURL string        `yaml:"gateway_url"`
	KeyID      string        `yaml:"key_id"`
	KeySecret  string        `yaml:"key_secret"`
	Timeout    time.Duration `yaml:"timeout"`
}

type NotifyConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type Config struct {
	App       AppConfig       `yaml:"app"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Payment   PaymentConfig   `yaml:"payment"`
	Notify    NotifyConfig    `yaml:"notify"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Name = "winex"
	cfg.App.Env = "development"
	cfg.App.Port = "8080"
	cfg.App.LogLevel = "debug"
	cfg.App.Timezone = "Asia/Kolkata"
	cfg.Postgres.SSLMode = "disable"
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute
	cfg.Postgres.MigrationsPath = "migrations"
	cfg.Pricing.TaxRate = decimal.RequireFromString("0.05")
	cfg.Pricing.ServiceFee = decimal.RequireFromString("39.00")
	cfg.Pricing.Currency = "INR"
	cfg.Dashboard.DisplayLimit = 20
	cfg.Payment.Timeout = 10 * time.Second
	cfg.Notify.Exchange = "winex.notifications"
	return cfg
}

// NewConfig собирает конфигурацию: дефолты, затем YAML из CONFIG_PATH, затем переменные окружения.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to load .env: %w", err)
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("config: invalid config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.App.Env, "APP_ENV")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	setString(&cfg.App.Timezone, "APP_TIMEZONE")
	setString(&cfg.App.StaffTokenHash, "STAFF_TOKEN_HASH")

	setString(&cfg.Postgres.Host, "DB_HOST")
	setString(&cfg.Postgres.Port, "DB_PORT")
	setString(&cfg.Postgres.User, "DB_USER")
	setString(&cfg.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Postgres.DBName, "DB_NAME")
	setString(&cfg.Postgres.SSLMode, "DB_SSLMODE")
	setString(&cfg.Postgres.MigrationsPath, "MIGRATIONS_PATH")

	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("config: invalid DB_MAX_CONNS %q: %w", v, err)
		}
		cfg.Postgres.MaxConns = int32(n)
	}
	if v := os.Getenv("DB_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("config: invalid DB_MIN_CONNS %q: %w", v, err)
		}
		cfg.Postgres.MinConns = int32(n)
	}
	if v := os.Getenv("DB_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid DB_MAX_CONN_LIFETIME %q: %w", v, err)
		}
		cfg.Postgres.MaxConnLifetime = d
	}

	if v := os.Getenv("TAX_RATE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("config: invalid TAX_RATE %q: %w", v, err)
		}
		cfg.Pricing.TaxRate = d
	}
	if v := os.Getenv("SERVICE_FEE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("config: invalid SERVICE_FEE %q: %w", v, err)
		}
		cfg.Pricing.ServiceFee = d
	}
	setString(&cfg.Pricing.Currency, "CURRENCY")

	if v := os.Getenv("DISPLAY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid DISPLAY_LIMIT %q: %w", v, err)
		}
		cfg.Dashboard.DisplayLimit = n
	}

	setString(&cfg.Payment.GatewayURL, "PAYMENT_GATEWAY_URL")
	setString(&cfg.Payment.KeyID, "PAYMENT_GATEWAY_KEY")
	setString(&cfg.Payment.KeySecret, "PAYMENT_GATEWAY_SECRET")

	setString(&cfg.Notify.AMQPURL, "AMQP_URL")
	setString(&cfg.Notify.Exchange, "NOTIFY_EXCHANGE")

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	required := map[string]string{
		"DB_HOST":     c.Postgres.Host,
		"DB_PORT":     c.Postgres.Port,
		"DB_USER":     c.Postgres.User,
		"DB_PASSWORD": c.Postgres.Password,
		"DB_NAME":     c.Postgres.DBName,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("config: %s is required", key)
		}
	}

	if c.Pricing.TaxRate.IsNegative() {
		return fmt.Errorf("config: tax rate cannot be negative, got %s", c.Pricing.TaxRate)
	}
	if c.Pricing.ServiceFee.IsNegative() {
		return fmt.Errorf("config: service fee cannot be negative, got %s", c.Pricing.ServiceFee)
	}
	if c.Dashboard.DisplayLimit <= 0 {
		return fmt.Errorf("config: display limit must be positive, got %d", c.Dashboard.DisplayLimit)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.App.Timezone, err)
	}
	return nil
}

// Location возвращает часовой пояс магазина; "сегодня" для токенов и отчётов считается в нём.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
