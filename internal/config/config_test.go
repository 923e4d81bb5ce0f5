package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "taskhive_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "marketplace_events",
			},
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Marketplace: MarketplaceConfig{
			CodeTTL:            15 * time.Minute,
			CodeMaxAttempts:    5,
			BloomExpectedBids:  100000,
			BloomFalsePositive: 0.01,
		},
		Sweeper: SweeperConfig{
			Schedule:         "@every 1m",
			LockTTL:          50 * time.Second,
			SweepTimeout:     45 * time.Second,
			MaxRetries:       5,
			BatchSize:        50,
			RetryConcurrency: 8,
			UseRedisLock:     true,
		},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "taskhive_db", cfg.Database.Database)
				assert.Equal(t, "marketplace_events", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, 6379, cfg.Redis.Port)
				assert.Equal(t, 15*time.Minute, cfg.Marketplace.CodeTTL)
				assert.Equal(t, 5, cfg.Marketplace.CodeMaxAttempts)
				assert.Equal(t, uint(100000), cfg.Marketplace.BloomExpectedBids)
				assert.Equal(t, "@every 1m", cfg.Sweeper.Schedule)
				assert.True(t, cfg.Sweeper.UseRedisLock)
				assert.Equal(t, "taskhive-api", cfg.App.Name)
			}
		})
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "zero code ttl",
			mutate:    func(c *Config) { c.Marketplace.CodeTTL = 0 },
			wantErr:   true,
			errString: "code_ttl must be greater than 0",
		},
		{
			name:      "zero code attempts",
			mutate:    func(c *Config) { c.Marketplace.CodeMaxAttempts = 0 },
			wantErr:   true,
			errString: "code_max_attempts must be greater than 0",
		},
		{
			name:      "zero bloom capacity",
			mutate:    func(c *Config) { c.Marketplace.BloomExpectedBids = 0 },
			wantErr:   true,
			errString: "bloom_expected_bids must be greater than 0",
		},
		{
			name:      "false positive rate out of range",
			mutate:    func(c *Config) { c.Marketplace.BloomFalsePositive = 1.5 },
			wantErr:   true,
			errString: "bloom_false_positive must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateSweeperConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "empty schedule",
			mutate:    func(c *Config) { c.Sweeper.Schedule = "" },
			wantErr:   true,
			errString: "sweeper schedule is required",
		},
		{
			name:      "zero lock ttl",
			mutate:    func(c *Config) { c.Sweeper.LockTTL = 0 },
			wantErr:   true,
			errString: "lock_ttl must be greater than 0",
		},
		{
			name:      "zero sweep timeout",
			mutate:    func(c *Config) { c.Sweeper.SweepTimeout = 0 },
			wantErr:   true,
			errString: "sweep_timeout must be greater than 0",
		},
		{
			name:      "zero max retries",
			mutate:    func(c *Config) { c.Sweeper.MaxRetries = 0 },
			wantErr:   true,
			errString: "max_retries must be greater than 0",
		},
		{
			name:      "zero batch size",
			mutate:    func(c *Config) { c.Sweeper.BatchSize = 0 },
			wantErr:   true,
			errString: "batch_size must be greater than 0",
		},
		{
			name:      "zero retry concurrency",
			mutate:    func(c *Config) { c.Sweeper.RetryConcurrency = 0 },
			wantErr:   true,
			errString: "retry_concurrency must be greater than 0",
		},
		{
			name:      "redis lock enabled without redis host",
			mutate:    func(c *Config) { c.Redis.Host = "" },
			wantErr:   true,
			errString: "redis host is required",
		},
		{
			name: "redis lock disabled ignores redis section",
			mutate: func(c *Config) {
				c.Sweeper.UseRedisLock = false
				c.Redis = RedisConfig{}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.ValidateSweeperConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateSweeperConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
