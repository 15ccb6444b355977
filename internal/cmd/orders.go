package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/ec-admin-console/internal/listing"
	"github.com/example/ec-admin-console/internal/readmodel"
	"github.com/example/ec-admin-console/internal/views"
)

func newOrdersCmd(opts *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:     "orders",
		Aliases: []string{"order"},
		Short:   "List orders, show one, or change its status",
	}
	c.AddCommand(newOrdersListCmd(opts), newOrdersShowCmd(opts), newOrdersStatusCmd(opts))
	return c
}

const createdLayout = "2006-01-02 15:04"

func newOrdersListCmd(opts *rootOptions) *cobra.Command {
	var pf pageFlags
	c := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				v := views.NewOrdersView(a.deps())
				if err := pf.apply(v); err != nil {
					return err
				}
				snap, err := v.Load(ctx)
				if err != nil {
					return err
				}

				t := table(cmd.OutOrStdout(), "ID", "CUSTOMER", "ITEMS", "TOTAL", "STATUS", "CREATED")
				for _, o := range snap.Items {
					created := "-"
					if !o.CreatedAt.IsZero() {
						created = o.CreatedAt.Local().Format(createdLayout)
					}
					t.Append([]string{o.ID, o.Customer(), strconv.Itoa(o.ItemCount()), readmodel.FormatMoney(o.TotalAmount), string(o.Status), created})
				}
				t.Render()
				footer(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
	pf.register(c)
	return c
}

func fetchOrder(ctx context.Context, a *app, id string) (readmodel.Order, error) {
	resp, err := a.client.Get(ctx, "/shop/orders/"+url.PathEscape(id), nil)
	if err != nil {
		return readmodel.Order{}, err
	}
	return listing.OrderFrom(resp.Body)
}

// printOrder renders the detail panel
func printOrder(out io.Writer, o readmodel.Order) {
	fmt.Fprintf(out, "Order %s\n", o.ID)
	fmt.Fprintf(out, "Customer: %s", o.Customer())
	if o.User.Email != "" && o.User.Email != o.Customer() {
		fmt.Fprintf(out, " <%s>", o.User.Email)
	}
	fmt.Fprintln(out)
	if !o.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created:  %s\n", o.CreatedAt.Local().Format(createdLayout))
	}
	fmt.Fprintf(out, "Status:   %s\n", o.Status)
	fmt.Fprintf(out, "Total:    %s\n\n", readmodel.FormatMoney(o.TotalAmount))

	t := table(out, "PRODUCT", "QTY", "UNIT", "LINE")
	for _, it := range o.Items {
		t.Append([]string{it.ProductName, strconv.Itoa(it.Quantity), readmodel.FormatMoney(it.UnitPrice), readmodel.FormatMoney(it.LineTotal())})
	}
	t.Render()
}

func newOrdersShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an order with its line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				o, err := fetchOrder(ctx, a, args[0])
				if err != nil {
					return err
				}
				printOrder(cmd.OutOrStdout(), o)
				return nil
			})
		},
	}
}

func newOrdersStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "status <id> <pending|completed>",
		Short:     "Change an order's status",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(readmodel.StatusPending), string(readmodel.StatusCompleted)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := readmodel.ParseOrderStatus(args[1]); err != nil {
				return err
			}
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				v := views.NewOrdersView(a.deps())
				if o, err := fetchOrder(ctx, a, args[0]); err == nil {
					v.OpenDetail(o)
				}
				if _, err := v.SetStatus(ctx, args[0], args[1]); err != nil {
					return err
				}
				if o, ok := v.Detail(); ok {
					printOrder(cmd.OutOrStdout(), o)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s\n", args[0], args[1])
				return nil
			})
		},
	}
}
