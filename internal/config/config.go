package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
	App         AppConfig         `yaml:"app"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Sweeper     SweeperConfig     `yaml:"sweeper"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// RedisConfig holds Redis connection configuration for the
// distributed scheduler locks
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// MarketplaceConfig holds job/bid/escrow lifecycle policy
type MarketplaceConfig struct {
	CodeTTL              time.Duration `yaml:"code_ttl"`
	CodeMaxAttempts      int           `yaml:"code_max_attempts"`
	BloomExpectedBids    uint          `yaml:"bloom_expected_bids"`
	BloomFalsePositive   float64       `yaml:"bloom_false_positive"`
	PenaltyThreshold     int           `yaml:"penalty_threshold"`
	PenaltyBlockDuration time.Duration `yaml:"penalty_block_duration"`
	JobExpireAfter       time.Duration `yaml:"job_expire_after"`
	JobExpireBatchSize   int           `yaml:"job_expire_batch_size"`
}

// SweeperConfig holds scheduled-sweep cadence and retry policy
type SweeperConfig struct {
	Schedule         string        `yaml:"schedule"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
	SweepTimeout     time.Duration `yaml:"sweep_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	BatchSize        int           `yaml:"batch_size"`
	RetryConcurrency int64         `yaml:"retry_concurrency"`
	UseRedisLock     bool          `yaml:"use_redis_lock"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// validateShared checks the sections both services need
func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.Marketplace.CodeTTL <= 0 {
		return fmt.Errorf("marketplace code_ttl must be greater than 0")
	}

	if c.Marketplace.CodeMaxAttempts <= 0 {
		return fmt.Errorf("marketplace code_max_attempts must be greater than 0")
	}

	return nil
}

// ValidateAPIConfig checks the configuration the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Marketplace.BloomExpectedBids == 0 {
		return fmt.Errorf("marketplace bloom_expected_bids must be greater than 0")
	}

	if c.Marketplace.BloomFalsePositive <= 0 || c.Marketplace.BloomFalsePositive >= 1 {
		return fmt.Errorf("marketplace bloom_false_positive must be between 0 and 1")
	}

	return nil
}

// ValidateSweeperConfig checks the configuration the sweeper service needs
func (c *Config) ValidateSweeperConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Sweeper.Schedule == "" {
		return fmt.Errorf("sweeper schedule is required")
	}

	if c.Sweeper.LockTTL <= 0 {
		return fmt.Errorf("sweeper lock_ttl must be greater than 0")
	}

	if c.Sweeper.SweepTimeout <= 0 {
		return fmt.Errorf("sweeper sweep_timeout must be greater than 0")
	}

	if c.Sweeper.MaxRetries <= 0 {
		return fmt.Errorf("sweeper max_retries must be greater than 0")
	}

	if c.Sweeper.BatchSize <= 0 {
		return fmt.Errorf("sweeper batch_size must be greater than 0")
	}

	if c.Sweeper.RetryConcurrency <= 0 {
		return fmt.Errorf("sweeper retry_concurrency must be greater than 0")
	}

	if c.Sweeper.UseRedisLock {
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host is required when use_redis_lock is enabled")
		}
		if c.Redis.Port < MinPort || c.Redis.Port > MaxPort {
			return fmt.Errorf("invalid redis port: %d (must be between %d and %d)", c.Redis.Port, MinPort, MaxPort)
		}
	}

	return nil
}
