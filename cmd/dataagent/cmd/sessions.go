package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/habiliai/dataagent"
	"github.com/habiliai/dataagent/session"
	"github.com/mokiat/gog"
	"github.com/spf13/cobra"
)

func newSessionsCmd(params *rootParams) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := params.newAgent(cmd.Context(), dataagent.WithOutput(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer func() { _ = agent.Close(context.WithoutCancel(cmd.Context())) }()

			summaries, err := agent.Sessions().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				agent.Console().Info("No saved sessions")
				return nil
			}

			lines := gog.Map(summaries, func(s session.Summary) string {
				name := s.Name
				if name == "" {
					name = "-"
				}
				return fmt.Sprintf("%-8s  %-24s  %-14s  %5d msgs  %8d tokens  %-6s  %s",
					s.ID, name, s.Model, s.Messages, s.Tokens, s.Status, s.Updated.Format("2006-01-02 15:04"))
			})
			agent.Console().Print(strings.Join(lines, "\n"))
			return nil
		},
	}
}
