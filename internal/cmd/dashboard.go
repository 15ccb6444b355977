package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/ec-admin-console/internal/dashboard"
)

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show store counters and the latest orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				d := dashboard.New(a.deps())
				if _, err := d.Load(ctx); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				cards := table(out)
				for _, c := range d.Cards() {
					cards.Append([]string{c.Label, c.Value})
				}
				cards.Render()

				rows := d.Recent()
				fmt.Fprintf(out, "\nRecent orders (%d)\n", len(rows))
				if len(rows) == 0 {
					fmt.Fprintln(out, "No orders yet")
					return nil
				}
				recent := table(out, "ID", "CUSTOMER", "ITEMS", "TOTAL", "STATUS", "PLACED")
				for _, r := range rows {
					placed := r.Placed
					if placed == "" {
						placed = "-"
					}
					recent.Append([]string{r.ID, r.Customer, strconv.Itoa(r.Items), r.Total, string(r.Status), placed})
				}
				recent.Render()
				return nil
			})
		},
	}
}
