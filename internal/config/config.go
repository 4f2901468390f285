package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/engagekit/vaultd/internal/database"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Encryption  EncryptionConfig `mapstructure:"encryption"`
	Webhooks    WebhooksConfig   `mapstructure:"webhooks"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Sweeper     SweeperConfig    `mapstructure:"sweeper"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	MasterToken string `mapstructure:"master_token"`
	JWTSecret   string `mapstructure:"jwt_secret"`
}

type EncryptionConfig struct {
	Key string `mapstructure:"key"`
}

type WebhooksConfig struct {
	MetaAppSecret     string        `mapstructure:"meta_app_secret"`
	ShopifySecret     string        `mapstructure:"shopify_secret"`
	StripeSecret      string        `mapstructure:"stripe_secret"`
	WooCommerceSecret string        `mapstructure:"woocommerce_secret"`
	StripeTolerance   time.Duration `mapstructure:"stripe_tolerance"`
	AllowUnverified   bool          `mapstructure:"allow_unverified"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type SweeperConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	SecretRetention time.Duration `mapstructure:"secret_retention"`
	EventRetention  time.Duration `mapstructure:"event_retention"`
}

type RateLimitConfig struct {
	BucketSize int `mapstructure:"bucket_size"`
	RefillRate int `mapstructure:"refill_rate"`
}

// IsProduction reports whether the service runs with production guarantees.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (*Config, error) {
	return LoadWithPath("config.yaml")
}

func LoadWithPath(path string) (*Config, error) {
	dir, file := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	ext := filepath.Ext(file)
	viper.SetConfigName(file[:len(file)-len(ext)])
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("environment", "development")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout", "30s")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "vaultd")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("webhooks.stripe_tolerance", "300s")
	viper.SetDefault("webhooks.allow_unverified", false)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file_path", "logs/vaultd.log")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("sweeper.interval", "1h")
	viper.SetDefault("sweeper.secret_retention", "720h")
	viper.SetDefault("sweeper.event_retention", "168h")
	viper.SetDefault("rate_limit.bucket_size", 100)
	viper.SetDefault("rate_limit.refill_rate", 10)

	// Environment variables take precedence over file values. The flat
	// aliases match what operators actually set in deployment manifests.
	viper.AutomaticEnv()
	bindEnvAliases()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, nil
}

func bindEnvAliases() {
	viper.BindEnv("encryption.key", "ENCRYPTION_KEY")
	viper.BindEnv("webhooks.meta_app_secret", "META_APP_SECRET")
	viper.BindEnv("webhooks.shopify_secret", "SHOPIFY_WEBHOOK_SECRET")
	viper.BindEnv("webhooks.stripe_secret", "STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("webhooks.woocommerce_secret", "WOOCOMMERCE_WEBHOOK_SECRET")
	viper.BindEnv("webhooks.allow_unverified", "ALLOW_UNVERIFIED_WEBHOOKS")
	viper.BindEnv("auth.master_token", "MASTER_TOKEN")
	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("environment", "ENVIRONMENT")
}

// ToDBConfig converts DatabaseConfig to database.Config
func (c DatabaseConfig) ToDBConfig() database.Config {
	return database.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.DBName,
		SSLMode:  c.SSLMode,
	}
}
