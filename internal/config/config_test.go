package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg, err := Load("testdata/valid_config.yaml")
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "escrow_db", cfg.Database.Database)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)

	assert.Equal(t, "escrow.audit", cfg.RabbitMQ.Exchange.Name)
	assert.Equal(t, "audit.events", cfg.RabbitMQ.Queue.Name)
	assert.Equal(t, 10, cfg.RabbitMQ.Consumer.PrefetchCount)
	assert.Equal(t, 2.0, cfg.RabbitMQ.Publish.BackoffMultiplier)

	assert.Equal(t, "platform-admin", cfg.Engine.Admin)
	assert.Equal(t, []string{"arbiter-1", "arbiter-2"}, cfg.Engine.Arbiters)
	assert.Equal(t, "escrow-pool", cfg.Engine.EscrowAccount)

	assert.Equal(t, 4, cfg.Auditor.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Auditor.ShutdownTimeout)
	assert.Equal(t, "http://localhost:9090/reputation", cfg.Auditor.ReputationWebhookURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does_not_exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load("testdata/malformed.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "invalid server port",
			mutate:  func(cfg *Config) { cfg.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing admin",
			mutate:  func(cfg *Config) { cfg.Engine.Admin = "" },
			wantErr: "engine admin identity is required",
		},
		{
			name:    "missing database host",
			mutate:  func(cfg *Config) { cfg.Database.Host = "" },
			wantErr: "database host is required",
		},
		{
			name:    "invalid database port",
			mutate:  func(cfg *Config) { cfg.Database.Port = 70000 },
			wantErr: "invalid database port",
		},
		{
			name:    "missing database name",
			mutate:  func(cfg *Config) { cfg.Database.Database = "" },
			wantErr: "database name is required",
		},
		{
			name:    "missing rabbitmq host",
			mutate:  func(cfg *Config) { cfg.RabbitMQ.Host = "" },
			wantErr: "rabbitmq host is required",
		},
		{
			name:    "missing exchange name",
			mutate:  func(cfg *Config) { cfg.RabbitMQ.Exchange.Name = "" },
			wantErr: "rabbitmq exchange name is required",
		},
		{
			name:    "missing queue name",
			mutate:  func(cfg *Config) { cfg.RabbitMQ.Queue.Name = "" },
			wantErr: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateAuditorConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "zero concurrency",
			mutate:  func(cfg *Config) { cfg.Auditor.Concurrency = 0 },
			wantErr: "concurrency must be greater than 0",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(cfg *Config) { cfg.Auditor.ShutdownTimeout = 0 },
			wantErr: "shutdown_timeout must be greater than 0",
		},
		{
			name:    "shared validation still applies",
			mutate:  func(cfg *Config) { cfg.RabbitMQ.Queue.Name = "" },
			wantErr: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAuditorConfig()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
