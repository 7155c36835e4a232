package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"spendwise/internal/config"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "memory", cfg: Config{Type: MemoryBackend}},
		{name: "sqlite ok", cfg: Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}},
		{name: "sqlite missing path", cfg: Config{Type: SQLiteBackend}, wantErr: "SQLite database path"},
		{name: "postgres missing url", cfg: Config{Type: PostgresBackend}, wantErr: "database URL"},
		{name: "unknown", cfg: Config{Type: "sheets"}, wantErr: "invalid backend type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.DatabaseURL != "postgres://x" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestFactoryCreatesMemoryAndSQLite(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil || res.Backend == nil {
		t.Fatalf("memory backend: %v", err)
	}

	res, err = f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "s.db")})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	if _, ok := res.Backend.(Pinger); !ok {
		t.Fatal("sqlite backend should support Ping")
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
