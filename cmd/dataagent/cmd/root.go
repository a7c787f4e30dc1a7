package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/habiliai/dataagent"
	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/errors"
	"github.com/spf13/cobra"
)

type rootParams struct {
	ConfigFile string
	Model      string
	Output     string
	Warehouse  string
	Verbose    bool
}

func newRootCmd() *cobra.Command {
	params := &rootParams{}
	cmd := &cobra.Command{
		Use:           "dataagent",
		Short:         "Ask questions about your data warehouse in plain language",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), params, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&params.ConfigFile, "config", "c", "", "YAML config file")
	flags.StringVarP(&params.Model, "model", "m", "", "Reasoning model, e.g. gpt-4o")
	flags.StringVarP(&params.Output, "output", "o", "", "Output mode: auto, observation or query")
	flags.StringVarP(&params.Warehouse, "warehouse", "w", "", "Warehouse DSN (a file path for sqlite)")
	flags.BoolVarP(&params.Verbose, "verbose", "v", false, "Show full tool results")

	cmd.AddCommand(
		newAskCmd(params),
		newIndexCmd(params),
		newSessionsCmd(params),
	)
	return cmd
}

func (p *rootParams) loadConfig() (*config.Config, error) {
	conf, err := config.Load(p.ConfigFile)
	if err != nil {
		return nil, err
	}
	if p.Model != "" {
		conf.Model.Name = p.Model
	}
	if p.Output != "" {
		conf.Model.OutputMode = p.Output
	}
	if p.Warehouse != "" {
		conf.Warehouse.DSN = config.ExpandHome(p.Warehouse)
	}
	return conf, nil
}

func (p *rootParams) newAgent(ctx context.Context, opts ...dataagent.Option) (*dataagent.Agent, error) {
	conf, err := p.loadConfig()
	if err != nil {
		return nil, err
	}
	agent, err := dataagent.New(ctx, append([]dataagent.Option{dataagent.WithConfig(conf)}, opts...)...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start agent")
	}
	if p.Verbose {
		agent.Commands().Settings().Verbose = true
		if c := agent.Console(); c != nil {
			c.SetVerbose(true)
		}
	}
	return agent, nil
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
