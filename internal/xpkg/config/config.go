package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DB       *Postgres `yaml:"database"`
	RMQ      *RabbitMQ `yaml:"rabbitmq"`
	Redis    *Redis    `yaml:"redis"`
	Auth     *Auth     `yaml:"auth"`
	Log      *Log      `yaml:"log"`
	Payouts  *Payouts  `yaml:"payouts"`
	Referral *Referral `yaml:"referral"`
	Push     *Push     `yaml:"push"`
}

type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	MaxConns int32  `yaml:"max_conns"`
}

// DSN builds the pgx connection string.
func (p *Postgres) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
	)
}

type RabbitMQ struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	VHost    string `yaml:"vhost"`
}

func (r *RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s", r.User, r.Password, r.Host, r.Port, r.VHost)
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// CacheTTL is applied to cached public content.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Payouts struct {
	RestaurantCommission float64 `yaml:"restaurant_commission"`
	DriverFeeShare       float64 `yaml:"driver_fee_share"`
	MinPayoutCents       int64   `yaml:"min_payout_cents"`
	// DefaultFrequency is used for payees created without one.
	DefaultFrequency string `yaml:"default_frequency"`
	Schedule         string `yaml:"schedule"`
}

type Referral struct {
	MinOrders     int   `yaml:"min_orders"`
	MinOrderCents int64 `yaml:"min_order_cents"`
	RewardCents   int64 `yaml:"reward_cents"`
}

type Push struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LoadConfig reads the yaml file, applies environment overrides and defaults.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cnf := &Config{}
	if err := yaml.Unmarshal(data, cnf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cnf.applyDefaults()
	cnf.applyEnv()
	if err := cnf.Validate(); err != nil {
		return nil, err
	}
	return cnf, nil
}

func (c *Config) applyDefaults() {
	if c.DB == nil {
		c.DB = &Postgres{}
	}
	if c.RMQ == nil {
		c.RMQ = &RabbitMQ{}
	}
	if c.Redis == nil {
		c.Redis = &Redis{}
	}
	if c.Auth == nil {
		c.Auth = &Auth{}
	}
	if c.Log == nil {
		c.Log = &Log{}
	}
	if c.Payouts == nil {
		c.Payouts = &Payouts{}
	}
	if c.Referral == nil {
		c.Referral = &Referral{}
	}
	if c.Push == nil {
		c.Push = &Push{}
	}

	setDefault(&c.DB.Host, "localhost")
	setDefault(&c.DB.Port, "5432")
	setDefault(&c.DB.Database, "deliveryhub")
	if c.DB.MaxConns <= 0 {
		c.DB.MaxConns = 10
	}

	setDefault(&c.RMQ.Host, "localhost")
	setDefault(&c.RMQ.Port, "5672")

	setDefault(&c.Redis.Addr, "localhost:6379")
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = time.Minute
	}

	setDefault(&c.Auth.Issuer, "deliveryhub")
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}

	setDefault(&c.Log.Level, "info")

	if c.Payouts.RestaurantCommission == 0 {
		c.Payouts.RestaurantCommission = 0.15
	}
	if c.Payouts.DriverFeeShare == 0 {
		c.Payouts.DriverFeeShare = 0.8
	}
	if c.Payouts.MinPayoutCents == 0 {
		c.Payouts.MinPayoutCents = 2000
	}
	setDefault(&c.Payouts.DefaultFrequency, "weekly")
	setDefault(&c.Payouts.Schedule, "@every 1h")

	if c.Referral.MinOrders == 0 {
		c.Referral.MinOrders = 3
	}
	if c.Referral.MinOrderCents == 0 {
		c.Referral.MinOrderCents = 1000
	}
	if c.Referral.RewardCents == 0 {
		c.Referral.RewardCents = 500
	}

	if c.Push.Timeout <= 0 {
		c.Push.Timeout = 5 * time.Second
	}
}

func (c *Config) applyEnv() {
	c.DB.Host = getEnv("DB_HOST", c.DB.Host)
	c.DB.Port = getEnv("DB_PORT", c.DB.Port)
	c.DB.User = getEnv("DB_USER", c.DB.User)
	c.DB.Password = getEnv("DB_PASSWORD", c.DB.Password)
	c.DB.Database = getEnv("DB_NAME", c.DB.Database)

	c.RMQ.Host = getEnv("RABBITMQ_HOST", c.RMQ.Host)
	c.RMQ.User = getEnv("RABBITMQ_USER", c.RMQ.User)
	c.RMQ.Password = getEnv("RABBITMQ_PASSWORD", c.RMQ.Password)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Payouts.RestaurantCommission < 0 || c.Payouts.RestaurantCommission > 1 {
		return fmt.Errorf("payouts.restaurant_commission must be in [0, 1]: %v", c.Payouts.RestaurantCommission)
	}
	if c.Payouts.DriverFeeShare < 0 || c.Payouts.DriverFeeShare > 1 {
		return fmt.Errorf("payouts.driver_fee_share must be in [0, 1]: %v", c.Payouts.DriverFeeShare)
	}
	if c.Payouts.MinPayoutCents < 0 {
		return fmt.Errorf("payouts.min_payout_cents cannot be negative: %d", c.Payouts.MinPayoutCents)
	}
	switch c.Payouts.DefaultFrequency {
	case "daily", "weekly", "biweekly", "monthly":
	default:
		return fmt.Errorf("payouts.default_frequency is unknown: %q", c.Payouts.DefaultFrequency)
	}
	if c.Referral.MinOrders < 0 || c.Referral.MinOrderCents < 0 || c.Referral.RewardCents < 0 {
		return fmt.Errorf("referral thresholds cannot be negative")
	}
	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// RequireAuth is checked by modes that verify or issue tokens.
func (c *Config) RequireAuth() error {
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) must be at least 16 characters")
	}
	return nil
}
