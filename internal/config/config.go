package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection string in URL form, as consumed by
// golang-migrate.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// DSN returns the database connection string in keyword form, as consumed by
// the GORM postgres driver.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret string
}

// SadadConfig holds Sadad hosted-checkout credentials.
type SadadConfig struct {
	MerchantID string
	SecretKey  string
	Domain     string
}

// PayPalConfig holds PayPal REST API credentials.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	BaseURL      string
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port   string
	AppEnv string

	DBConfig    DatabaseConfig
	RedisConfig RedisConfig
	KafkaConfig KafkaConfig
	JWTConfig   JWTConfig

	Sadad  SadadConfig
	PayPal PayPalConfig

	CronSecret    string
	HoldTTL       time.Duration
	SweepInterval time.Duration

	// PaymentPageBase is the frontend URL prefix callback redirects point at.
	PaymentPageBase string

	// PublicBaseURL is this service's externally reachable URL, used to build
	// the callback address registered with the payment gateways.
	PublicBaseURL string
}

// Load reads configuration from environment variables with the BOOKING_
// prefix. Unprefixed gateway credentials (SADAD_*, PAYPAL_*, CRON_SECRET)
// are also honored so deployment secrets can be shared across services.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", "8083")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "nuzul_bookings")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "nuzul.")

	v.SetDefault("HOLD_TTL_MINUTES", 30)
	v.SetDefault("SWEEP_INTERVAL_MINUTES", 10)
	v.SetDefault("PAYMENT_PAGE_BASE", "https://nuzul.example.com/payment")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8083")
	v.SetDefault("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com")

	for _, key := range []string{
		"JWT_SECRET", "CRON_SECRET",
		"SADAD_ID", "SADAD_SECRET_KEY", "SADAD_DOMAIN",
		"PAYPAL_CLIENT_ID", "PAYPAL_CLIENT_SECRET", "PAYPAL_WEBHOOK_ID", "PAYPAL_BASE_URL",
	} {
		if err := v.BindEnv(key, key, "BOOKING_"+key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := &ServiceConfig{
		Port:   ":" + v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		RedisConfig: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		JWTConfig: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		Sadad: SadadConfig{
			MerchantID: v.GetString("SADAD_ID"),
			SecretKey:  v.GetString("SADAD_SECRET_KEY"),
			Domain:     v.GetString("SADAD_DOMAIN"),
		},
		PayPal: PayPalConfig{
			ClientID:     v.GetString("PAYPAL_CLIENT_ID"),
			ClientSecret: v.GetString("PAYPAL_CLIENT_SECRET"),
			WebhookID:    v.GetString("PAYPAL_WEBHOOK_ID"),
			BaseURL:      v.GetString("PAYPAL_BASE_URL"),
		},
		CronSecret:      v.GetString("CRON_SECRET"),
		HoldTTL:         time.Duration(v.GetInt("HOLD_TTL_MINUTES")) * time.Minute,
		SweepInterval:   time.Duration(v.GetInt("SWEEP_INTERVAL_MINUTES")) * time.Minute,
		PaymentPageBase: v.GetString("PAYMENT_PAGE_BASE"),
		PublicBaseURL:   v.GetString("PUBLIC_BASE_URL"),
	}

	if cfg.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.CronSecret == "" {
		return nil, fmt.Errorf("CRON_SECRET is required")
	}

	return cfg, nil
}
