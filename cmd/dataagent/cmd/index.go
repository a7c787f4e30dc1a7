package cmd

import (
	"context"
	"fmt"

	"github.com/habiliai/dataagent"
	"github.com/spf13/cobra"
)

func newIndexCmd(params *rootParams) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the warehouse schema into long-term memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := params.newAgent(cmd.Context(), dataagent.WithOutput(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer func() { _ = agent.Close(context.WithoutCancel(cmd.Context())) }()

			n, err := agent.IndexSchema(cmd.Context(), force)
			if err != nil {
				return err
			}
			if n == 0 && !force {
				agent.Console().Info("Schema already indexed. Use --force to re-index.")
				return nil
			}
			agent.Console().Success(fmt.Sprintf("Indexed %d tables", n))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-index even when the schema is already indexed")
	return cmd
}
