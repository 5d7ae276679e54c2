package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "budget",
		Short:        "Budget item service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newInitDBCmd(), newEventsCmd())
	return root
}

// Run executes the CLI with args.
func Run(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
