package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Payment     PaymentConfig  `mapstructure:"payment"`
	Workers     WorkerConfig   `mapstructure:"workers"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TelegramConfig configures the bot transport
type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	BotUsername    string `mapstructure:"bot_username"`
	UpdateTimeout  int    `mapstructure:"update_timeout"`
	StateTTLSecs   int    `mapstructure:"state_ttl_seconds"`
	RateLimitPerMin int   `mapstructure:"rate_limit_per_min"`
}

// PaymentConfig configures the bank transfer leg: the webhook shared
// secret, the receiving account rendered into QR codes, and the textual
// token that routes bank descriptions back to a user.
type PaymentConfig struct {
	WebhookSecret      string `mapstructure:"webhook_secret"`
	BankName           string `mapstructure:"bank_name"`
	BankAccount        string `mapstructure:"bank_account"`
	BankAccountName    string `mapstructure:"bank_account_name"`
	DescriptionPrefix  string `mapstructure:"description_prefix"`
}

type WorkerConfig struct {
	ExpirySweepSeconds int `mapstructure:"expiry_sweep_seconds"`
	ExpiryBatchSize    int `mapstructure:"expiry_batch_size"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 3333)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "tikup")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("telegram.update_timeout", 60)
	viper.SetDefault("telegram.bot_username", "tikupprobot")
	viper.SetDefault("telegram.state_ttl_seconds", 600)
	viper.SetDefault("telegram.rate_limit_per_min", 30)

	viper.SetDefault("payment.description_prefix", "TIKUP")

	viper.SetDefault("workers.expiry_sweep_seconds", 60)
	viper.SetDefault("workers.expiry_batch_size", 100)
}

func validate(cfg *Config) error {
	if cfg.Telegram.BotToken == "" && cfg.Environment != "test" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if cfg.Payment.WebhookSecret == "" && cfg.Environment == "production" {
		return fmt.Errorf("payment.webhook_secret is required in production")
	}
	if cfg.Payment.DescriptionPrefix == "" {
		return fmt.Errorf("payment.description_prefix must not be empty")
	}
	return nil
}

// RedisAddr returns the host:port address for the redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
