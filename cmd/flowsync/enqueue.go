package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) newEnqueueCmd() *cobra.Command {
	var tenantID, flowName string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue one flow run for a tenant outside its schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc, err := c.remote()
			if err != nil {
				return err
			}
			if rc != nil {
				d, err := rc.Enqueue(cmd.Context(), tenantID, flowName)
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

			d, err := eng.EnqueueNow(cmd.Context(), tenantID, flowName)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	cmd.Flags().StringVar(&flowName, "flow", "", "flow name")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("flow")
	return cmd
}
