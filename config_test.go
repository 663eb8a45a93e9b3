package flowsync_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/flowsync"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := flowsync.DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := flowsync.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	def := flowsync.DefaultConfig()
	if cfg.Queue.Name != def.Queue.Name {
		t.Errorf("Queue.Name = %q, want %q", cfg.Queue.Name, def.Queue.Name)
	}
	if cfg.Scheduler.TriggerSpec != def.Scheduler.TriggerSpec {
		t.Errorf("TriggerSpec = %q, want %q", cfg.Scheduler.TriggerSpec, def.Scheduler.TriggerSpec)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowsync.yaml")
	yaml := `
store:
  driver: redis
  dsn: redis://localhost:6379/0
queue:
  name: tenant-flows
  max_attempts: 3
  visibility_timeout: 2m
worker:
  concurrency: 4
  flow_timeout: 90s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FLOWSYNC_WORKER_CONCURRENCY", "8")

	cfg, err := flowsync.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Driver != "redis" {
		t.Errorf("Store.Driver = %q, want redis", cfg.Store.Driver)
	}
	if cfg.Queue.Name != "tenant-flows" {
		t.Errorf("Queue.Name = %q, want tenant-flows", cfg.Queue.Name)
	}
	if cfg.Queue.MaxAttempts != 3 {
		t.Errorf("Queue.MaxAttempts = %d, want 3", cfg.Queue.MaxAttempts)
	}
	if cfg.Queue.VisibilityTimeout != 2*time.Minute {
		t.Errorf("Queue.VisibilityTimeout = %v, want 2m", cfg.Queue.VisibilityTimeout)
	}
	if cfg.Worker.Concurrency != 8 {
		t.Errorf("Worker.Concurrency = %d, want 8 (env override)", cfg.Worker.Concurrency)
	}
}

func TestConfig_UnboundedFlowTimeout(t *testing.T) {
	cfg := flowsync.DefaultConfig()
	cfg.Worker.FlowTimeout = 0
	cfg.Queue.VisibilityTimeout = time.Second
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*flowsync.Config)
		field  string
	}{
		{"unknown driver", func(c *flowsync.Config) { c.Store.Driver = "cosmos" }, "Driver"},
		{"redis without dsn", func(c *flowsync.Config) { c.Store.Driver = "redis" }, "DSN"},
		{"mongo without database", func(c *flowsync.Config) {
			c.Store.Driver = "mongo"
			c.Store.DSN = "mongodb://localhost"
		}, "Database"},
		{"zero attempts", func(c *flowsync.Config) { c.Queue.MaxAttempts = 0 }, "MaxAttempts"},
		{"zero concurrency", func(c *flowsync.Config) { c.Worker.Concurrency = 0 }, "Concurrency"},
		{"bad log format", func(c *flowsync.Config) { c.Log.Format = "xml" }, "Format"},
		{"visibility not above flow timeout", func(c *flowsync.Config) {
			c.Queue.VisibilityTimeout = 5 * time.Minute
			c.Worker.FlowTimeout = 10 * time.Minute
		}, "VisibilityTimeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := flowsync.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}
