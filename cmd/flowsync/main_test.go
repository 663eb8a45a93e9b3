package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/api"
	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/engine"
	"github.com/xraph/flowsync/flows"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/store/memory"
	"github.com/xraph/flowsync/store/sqlite"
	"github.com/xraph/flowsync/tenant"
)

// sqliteConfig writes a config file pointing at a fresh database file so
// state survives between command invocations.
func sqliteConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "flowsync.db")
	configPath = filepath.Join(dir, "flowsync.yaml")
	yaml := "store:\n  driver: sqlite\n  dsn: " + dbPath + "\nlog:\n  level: error\n"
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, dbPath
}

func seedTenant(t *testing.T, dbPath, tid string) {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	err = s.CreateTenant(ctx, &tenant.Tenant{
		TenantID: tid,
		Flows:    []tenant.FlowConfig{{Name: flows.HeartbeatName, Enabled: true, Cron: "0 0 * * * *"}},
	})
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_ListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"serve", "pass", "enqueue", "dlq"} {
		if !strings.Contains(out, name) {
			t.Errorf("help output missing %q", name)
		}
	}
}

func TestPass_PrintsReport(t *testing.T) {
	cfgPath, dbPath := sqliteConfig(t)
	seedTenant(t, dbPath, "acme")

	out, err := execute(t, "--config", cfgPath, "pass")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	var report cron.PassReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report %q: %v", out, err)
	}
	if report.TenantsScanned != 1 || report.FlowsEnqueued != 1 {
		t.Errorf("report = %+v", report)
	}

	// The watermark moved, so a second pass finds nothing due.
	out, err = execute(t, "--config", cfgPath, "pass")
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	report = cron.PassReport{}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.FlowsEnqueued != 0 {
		t.Errorf("second pass enqueued %d, want 0", report.FlowsEnqueued)
	}
}

func TestEnqueue(t *testing.T) {
	cfgPath, dbPath := sqliteConfig(t)
	seedTenant(t, dbPath, "acme")

	out, err := execute(t, "--config", cfgPath, "enqueue", "--tenant", "acme", "--flow", flows.HeartbeatName)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var d queue.Delivery
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode delivery %q: %v", out, err)
	}
	if d.ID.IsNil() {
		t.Error("delivery has no ID")
	}

	if _, err := execute(t, "--config", cfgPath, "enqueue", "--tenant", "acme", "--flow", "nope"); err == nil {
		t.Error("expected unknown flow error")
	}
	if _, err := execute(t, "--config", cfgPath, "enqueue", "--tenant", "acme"); err == nil {
		t.Error("expected missing --flow error")
	}
}

func TestDLQ_ListAndReplay(t *testing.T) {
	cfgPath, _ := sqliteConfig(t)

	out, err := execute(t, "--config", cfgPath, "dlq", "list")
	if err != nil {
		t.Fatalf("dlq list: %v", err)
	}
	var entries []*dlq.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode entries %q: %v", out, err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}

	if _, err := execute(t, "--config", cfgPath, "dlq", "replay", "not-an-id"); err == nil {
		t.Error("expected invalid ID error")
	}
}

func TestBadConfig(t *testing.T) {
	if _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "pass"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestPass_AuditLog(t *testing.T) {
	cfgPath, dbPath := sqliteConfig(t)
	seedTenant(t, dbPath, "acme")
	yaml := "store:\n  driver: sqlite\n  dsn: " + dbPath + "\nlog:\n  level: info\n  audit: true\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--config", cfgPath, "pass"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	logs := errOut.String()
	for _, want := range []string{"action=flow.enqueued", "action=pass.completed"} {
		if !strings.Contains(logs, want) {
			t.Errorf("audit log missing %q:\n%s", want, logs)
		}
	}
}

func TestRemote_PassAndEnqueue(t *testing.T) {
	cfg := flowsync.DefaultConfig()
	cfg.Scheduler.TriggerSpec = ""
	cfg.Scheduler.HeartbeatSpec = ""

	s := memory.New()
	if err := s.CreateTenant(context.Background(), &tenant.Tenant{
		TenantID: "acme",
		Flows:    []tenant.FlowConfig{{Name: flows.HeartbeatName, Enabled: true, Cron: "0 0 * * * *"}},
	}); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	logger := slog.New(slog.DiscardHandler)
	eng, err := engine.Build(context.Background(), cfg,
		engine.WithStore(s),
		engine.WithLogger(logger),
		engine.WithFlows(flows.Definitions(flows.WithLogger(logger))...),
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	srv := httptest.NewServer(api.New(eng).Handler())
	t.Cleanup(srv.Close)

	out, err := execute(t, "--server", srv.URL, "pass")
	if err != nil {
		t.Fatalf("remote pass: %v", err)
	}
	var report cron.PassReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report %q: %v", out, err)
	}
	if report.FlowsEnqueued != 1 {
		t.Errorf("FlowsEnqueued = %d, want 1", report.FlowsEnqueued)
	}

	if _, err := execute(t, "--server", srv.URL, "enqueue", "--tenant", "ghost", "--flow", flows.HeartbeatName); !errors.Is(err, flowsync.ErrTenantNotFound) {
		t.Errorf("remote enqueue for missing tenant: got %v", err)
	}

	out, err = execute(t, "--server", srv.URL, "dlq", "list")
	if err != nil {
		t.Fatalf("remote dlq list: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("dlq list = %q, want []", out)
	}
}
