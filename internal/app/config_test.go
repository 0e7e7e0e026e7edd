package app

import (
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GRPCAddr != ":50051" {
		t.Errorf("expected GRPCAddr :50051, got %s", cfg.GRPCAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be true")
	}
	if cfg.OutboxPollInterval != time.Second || cfg.OutboxBatchSize != 100 || cfg.OutboxMaxAttempts != 3 {
		t.Errorf("unexpected outbox defaults: %+v", cfg)
	}
	if cfg.CacheTTL.Order != 600*time.Second || cfg.CacheTTL.Invoice != 300*time.Second || cfg.CacheTTL.Collection != 60*time.Second {
		t.Errorf("unexpected cache TTL defaults: %+v", cfg.CacheTTL)
	}
	if cfg.ReturnWindow != domain.DefaultReturnWindow {
		t.Errorf("expected return window %s, got %s", domain.DefaultReturnWindow, cfg.ReturnWindow)
	}
	if cfg.kafkaEnabled() {
		t.Error("kafka must be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.StorageDriver = StorageDriverPostgres },
			wantErr: "requires a DSN",
		},
		{
			name:    "unsupported driver",
			mutate:  func(c *Config) { c.StorageDriver = "sqlite" },
			wantErr: "unsupported storage driver",
		},
		{
			name:    "empty grpc address",
			mutate:  func(c *Config) { c.GRPCAddr = "" },
			wantErr: "grpc address",
		},
		{
			name:    "non-positive return window",
			mutate:  func(c *Config) { c.ReturnWindow = 0 },
			wantErr: "return window",
		},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.StorageDriver = "Postgres"
				c.PostgresDSN = "postgres://localhost/storefront"
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
