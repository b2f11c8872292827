package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "SUIPAY_EVENT_MODULE")
	unsetEnvWithCleanup(t, "INDEXER_POLL_INTERVAL_SECONDS")
	unsetEnvWithCleanup(t, "INDEXER_PAGE_SIZE")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "3002" {
		t.Fatalf("expected default server port 3002, got %q", cfg.ServerPort)
	}
	if cfg.TokenTTLHours != 24 {
		t.Fatalf("expected default token ttl of 24 hours, got %d", cfg.TokenTTLHours)
	}
	if cfg.SuiEventModule != "payment" {
		t.Fatalf("expected default event module payment, got %q", cfg.SuiEventModule)
	}
	if cfg.IndexerPollIntervalSeconds != 2 || cfg.IndexerPageSize != 50 {
		t.Fatalf("expected default poll interval 2s and page size 50, got %d and %d",
			cfg.IndexerPollIntervalSeconds, cfg.IndexerPageSize)
	}
	if cfg.OrderPaidExchange != "suipay.events" || cfg.OrderPaidRoutingKey != "order.paid" {
		t.Fatalf("expected default exchange wiring, got %q / %q", cfg.OrderPaidExchange, cfg.OrderPaidRoutingKey)
	}
}

func TestLoadConfig_PlatformPortTakesPrecedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "3002")
	setEnvWithCleanup(t, "PORT", "8080")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected platform PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_UsesSuiPackageIDAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SUIPAY_PACKAGE_ID")
	setEnvWithCleanup(t, "SUI_PACKAGE_ID", "0xabc")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SuiPackageID != "0xabc" {
		t.Fatalf("expected SuiPackageID from alias env var, got %q", cfg.SuiPackageID)
	}
}

func TestLoadConfig_NonPositiveTokenTTLFallsBack(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "TOKEN_TTL_HOURS", "-1")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.TokenTTLHours != 24 {
		t.Fatalf("expected fallback token ttl of 24 hours, got %d", cfg.TokenTTLHours)
	}
}

func TestConfig_IndexingEnabled(t *testing.T) {
	tests := []struct {
		name      string
		packageID string
		want      bool
	}{
		{name: "unset package id", packageID: "", want: false},
		{name: "whitespace package id", packageID: "   ", want: false},
		{name: "placeholder package id", packageID: "0x0", want: false},
		{name: "real package id", packageID: "0xabc123", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{SuiPackageID: tt.packageID}
			if got := cfg.IndexingEnabled(); got != tt.want {
				t.Fatalf("IndexingEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
