package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Orders.UndoWindow != 5*time.Second {
		t.Errorf("undo window = %s, want 5s", cfg.Orders.UndoWindow)
	}
	if cfg.Orders.Retention != time.Hour {
		t.Errorf("retention = %s, want 1h", cfg.Orders.Retention)
	}
	if cfg.Orders.StrictTransitions {
		t.Error("strict transitions enabled by default")
	}
	if cfg.Gateway.Addr() != "0.0.0.0:8080" {
		t.Errorf("gateway addr = %s", cfg.Gateway.Addr())
	}
	if cfg.Redis.Enabled || cfg.MongoDB.Enabled || cfg.Archive.Enabled || cfg.NATS.Enabled || cfg.Etcd.Enabled {
		t.Error("external sinks enabled by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  name: lane-2
gateway:
  port: 9090
orders:
  undo_window: 3s
  retention: 30m
  strict_transitions: true
  validation:
    max_items: 12
redis:
  enabled: true
  addr: redis:6379
`)
	t.Setenv("KIOSK_GATEWAY_PORT", "9191")
	t.Setenv("KIOSK_REDIS_PASSWORD", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Name != "lane-2" {
		t.Errorf("server name = %q", cfg.Server.Name)
	}
	if cfg.Gateway.Port != 9191 {
		t.Errorf("gateway port = %d, want env override 9191", cfg.Gateway.Port)
	}
	if cfg.Orders.UndoWindow != 3*time.Second || cfg.Orders.Retention != 30*time.Minute {
		t.Errorf("orders = %+v", cfg.Orders)
	}
	if !cfg.Orders.StrictTransitions || cfg.Orders.Validation.MaxItems != 12 {
		t.Errorf("orders policy = %+v", cfg.Orders)
	}
	if !cfg.Orders.Validation.RejectNegative {
		t.Error("reject_negative default lost when section partially set")
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" || cfg.Redis.Password != "secret" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "zeroUndo", body: "orders:\n  undo_window: 0s\n", want: "undo_window"},
		{name: "archiveDriver", body: "archive:\n  enabled: true\n  driver: sqlite\n  dsn: x\n", want: "archive.driver"},
		{name: "archiveDSN", body: "archive:\n  enabled: true\n  driver: mysql\n", want: "archive.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() of missing file succeeded")
	}
}
