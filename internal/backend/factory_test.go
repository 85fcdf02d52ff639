package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bizdash/internal/cache"
	"bizdash/internal/core"
	"bizdash/internal/config"
	"bizdash/internal/services"
)

func memoryConfig() Config {
	return Config{
		Type:      MemoryBackend,
		SeedDir:   ".",
		SeedOrgID: "demo",
		CacheTTL:  time.Minute,
		CacheSize: 8,
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	ctx := context.Background()
	result, err := NewFactory(nil).CreateBackend(ctx, memoryConfig())
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer result.Cleanup()

	if result.Publisher != nil {
		t.Fatal("publisher should be nil without AMQP")
	}
	if _, ok := result.Locker.(cache.NoopLocker); !ok {
		t.Fatalf("expected NoopLocker, got %T", result.Locker)
	}
	if _, ok := result.Snapshots.(*cache.LRUCache[services.Snapshot]); !ok {
		t.Fatalf("expected LRU snapshot cache, got %T", result.Snapshots)
	}

	businesses, err := result.Repository.ListBusinesses(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(businesses) != 1 || businesses[0].Name != "Main Store" {
		t.Fatalf("expected default seeded business, got %+v", businesses)
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	cfg := memoryConfig()
	cfg.Type = SQLiteBackend
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "biz.db")

	ctx := context.Background()
	result, err := NewFactory(nil).CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	tenant, err := result.Repository.GetTenant(ctx, "demo")
	if err != nil || tenant.Tier != core.Enterprise || !tenant.Active {
		t.Fatalf("seed tenant = %+v (%v)", tenant, err)
	}
	if err := result.Repository.UpsertTenant(ctx, core.Tenant{ID: "demo", Tier: core.Starter, Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := result.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	// Reopening keeps the tenant an admin already changed.
	result, err = NewFactory(nil).CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer result.Cleanup()
	if tenant, err := result.Repository.GetTenant(ctx, "demo"); err != nil || tenant.Tier != core.Starter {
		t.Fatalf("tenant after reopen = %+v (%v)", tenant, err)
	}
}

func TestCreateBackend_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "unknown type", mutate: func(c *Config) { c.Type = "sheets" }, want: "invalid backend type"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Type = SQLiteBackend }, want: "SQLite database path is required"},
		{name: "memory without org", mutate: func(c *Config) { c.SeedOrgID = "" }, want: "seed organization is required"},
		{name: "zero cache ttl", mutate: func(c *Config) { c.CacheTTL = 0 }, want: "cache TTL must be positive"},
		{name: "redis unreachable", mutate: func(c *Config) { c.RedisAddr = "127.0.0.1:1" }, want: "failed to connect to redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(&cfg)
			_, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	app := &config.Config{
		DataBackend: "memory",
		SeedDir:     "seed",
		SeedOrgID:   "acme",
		RedisAddr:   "redis:6379",
		CacheTTL:    time.Second,
		CacheSize:   4,
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != MemoryBackend || cfg.SeedOrgID != "acme" || cfg.RedisAddr != "redis:6379" || cfg.CacheSize != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	app.DataBackend = "postgres"
	if _, err := FromAppConfig(app); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
