package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
}

// NewRootCmd builds a fresh command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "admin",
		Short: "EC Admin Console - manage categories, products and orders",
		Long: `admin signs an administrator in against the shop's admin API and lets
them browse and edit categories and products, follow orders and their status,
and read the dashboard counters. "admin serve" runs the same features as a
local HTTP console.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./admin.yaml or $HOME/.ec-admin/admin.yaml)")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newCategoriesCmd(opts),
		newProductsCmd(opts),
		newOrdersCmd(opts),
		newDashboardCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run builds the app for one command and tears it down afterwards
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, o.configFile)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// runSignedIn is run behind the session guard
func (o *rootOptions) runSignedIn(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	return o.run(cmd, func(ctx context.Context, a *app) error {
		if err := a.requireSession(cmd.CommandPath()); err != nil {
			return err
		}
		return fn(ctx, a)
	})
}
