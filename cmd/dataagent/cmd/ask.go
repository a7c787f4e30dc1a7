package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/habiliai/dataagent"
	"github.com/habiliai/dataagent/errors"
	"github.com/spf13/cobra"
)

func newAskCmd(params *rootParams) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question without entering the REPL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("please provide a question")
			}

			agent, err := params.newAgent(ctx, dataagent.WithOutput(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer func() {
				if err := agent.Close(context.WithoutCancel(ctx)); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed to close agent: %v\n", err)
				}
			}()

			_, err = agent.Ask(ctx, question)
			return err
		},
	}
}
