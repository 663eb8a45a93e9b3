package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xraph/flowsync"
	audithook "github.com/xraph/flowsync/audit_hook"
	"github.com/xraph/flowsync/client"
	"github.com/xraph/flowsync/engine"
	"github.com/xraph/flowsync/flows"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	server     string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "flowsync",
		Short:         "Multi-tenant cron orchestrator and flow worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&c.server, "server", "",
		"admin API base URL; pass, enqueue, and dlq then act on that server instead of the local store")

	root.AddCommand(
		c.newServeCmd(),
		c.newPassCmd(),
		c.newEnqueueCmd(),
		c.newDLQCmd(),
	)
	return root
}

// loadConfig reads the config file named by --config plus FLOWSYNC_*
// overrides.
func (c *cli) loadConfig() (flowsync.Config, error) {
	return flowsync.LoadConfig(c.configPath)
}

// buildEngine loads config and wires an engine with the builtin flows.
// Logs go to the command's stderr.
func (c *cli) buildEngine(ctx context.Context, cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := engine.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithFlows(flows.Definitions(flows.WithLogger(logger))...),
	}
	if cfg.Log.Audit {
		opts = append(opts, engine.WithExtension(
			audithook.New(audithook.LogRecorder(logger), audithook.WithLogger(logger)),
		))
	}

	eng, err := engine.Build(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return eng, nil
}

// remote returns an API client when --server is set, or nil.
func (c *cli) remote() (*client.Client, error) {
	if c.server == "" {
		return nil, nil
	}
	return client.New(c.server)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
