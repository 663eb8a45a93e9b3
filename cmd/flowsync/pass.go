package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) newPassCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pass",
		Short: "Run one orchestrator pass and print its report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc, err := c.remote()
			if err != nil {
				return err
			}
			if rc != nil {
				report, err := rc.RunPass(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			}

			eng, err := c.buildEngine(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.RunPass(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}
