// Package cli provides the gateway's command-line interface.
//
// Programs that provide their own message format implementation can embed the
// command tree by passing [gateway.WithRelaynet] to [NewCommand].
package cli

import (
	"context"

	"github.com/relaynet/gateway"
	"github.com/spf13/cobra"
)

// NewCommand returns the root command of the gateway's CLI.
//
// The options are applied to every gateway constructed by the subcommands, in
// addition to options read from the environment.
func NewCommand(options ...gateway.Option) *cobra.Command {
	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Store-and-forward relay for Relaynet cargo and parcels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	run := func(fn func(context.Context, *gateway.Gateway) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			g, err := gateway.New(
				cmd.Context(),
				append(
					[]gateway.Option{gateway.WithOptionsFromEnvironment()},
					options...,
				)...,
			)
			if err != nil {
				return err
			}
			defer g.Close()

			return fn(cmd.Context(), g)
		}
	}

	root.AddCommand(
		serveCmd(run),
		deliverCmd(run),
		ledgerCmd(run),
	)

	return root
}

type runFunc func(func(context.Context, *gateway.Gateway) error) func(*cobra.Command, []string) error

func serveCmd(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cargo relay server and all background workers",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, g *gateway.Gateway) error {
			return ignoreCancel(ctx, g.Run(ctx))
		}),
	}
}

func deliverCmd(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Run only the worker that delivers parcels to the Internet",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, g *gateway.Gateway) error {
			return ignoreCancel(ctx, g.RunDeliveryWorker(ctx))
		}),
	}
}

func ledgerCmd(run runFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Manage the collection ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create-schema",
		Short: "Create the tables and buckets used by the configured stores",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, g *gateway.Gateway) error {
			return g.CreateSchema(ctx)
		}),
	})

	return cmd
}

// ignoreCancel returns nil if err was caused by ctx being canceled, as happens
// when the process is asked to stop.
func ignoreCancel(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
