package main

import (
	"github.com/spf13/cobra"

	"github.com/xraph/flowsync/client"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
)

func (c *cli) newDLQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered jobs",
	}
	cmd.AddCommand(c.newDLQListCmd(), c.newDLQReplayCmd())
	return cmd
}

func (c *cli) newDLQListCmd() *cobra.Command {
	var opts dlq.ListOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := c.listDLQ(cmd, opts)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []*dlq.Entry{}
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum entries to print")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "entries to skip")
	cmd.Flags().StringVar(&opts.TenantID, "tenant", "", "only entries for this tenant")
	return cmd
}

func (c *cli) newDLQReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <entry-id>",
		Short: "Push a dead-lettered job back onto its queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := id.ParseDLQID(args[0])
			if err != nil {
				return err
			}

			rc, err := c.remote()
			if err != nil {
				return err
			}
			if rc != nil {
				d, err := rc.ReplayDLQ(cmd.Context(), entryID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), d)
			}

			eng, err := c.buildEngine(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			d, err := eng.DLQService().Replay(cmd.Context(), entryID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
}

func (c *cli) listDLQ(cmd *cobra.Command, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	rc, err := c.remote()
	if err != nil {
		return nil, err
	}
	if rc != nil {
		return rc.ListDLQ(cmd.Context(), client.DLQFilter{
			TenantID: opts.TenantID,
			Limit:    opts.Limit,
			Offset:   opts.Offset,
		})
	}

	eng, err := c.buildEngine(cmd.Context(), cmd)
	if err != nil {
		return nil, err
	}
	defer eng.Close()
	return eng.DLQService().List(cmd.Context(), opts)
}
