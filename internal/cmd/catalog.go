package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/ec-admin-console/internal/listing"
	"github.com/example/ec-admin-console/internal/readmodel"
	"github.com/example/ec-admin-console/internal/upload"
	"github.com/example/ec-admin-console/internal/views"
)

// ============================================
// Categories
// ============================================

func newCategoriesCmd(opts *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "List, create, edit and delete categories",
	}
	c.AddCommand(newCategoriesListCmd(opts), newCategoriesSaveCmd(opts), newCategoriesDeleteCmd(opts))
	return c
}

func newCategoriesListCmd(opts *rootOptions) *cobra.Command {
	var pf pageFlags
	c := &cobra.Command{
		Use:   "list",
		Short: "List categories ordered by sort id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				v := views.NewCategoriesView(a.deps())
				if err := pf.apply(v); err != nil {
					return err
				}
				snap, err := v.Load(ctx)
				if err != nil {
					return err
				}

				t := table(cmd.OutOrStdout(), "ID", "NAME", "TYPE", "VISIBLE", "SORT")
				for _, cat := range snap.Items {
					kind := "main"
					if cat.IsSub() {
						kind = "sub"
					}
					t.Append([]string{cat.ID, cat.Name, kind, yesNo(cat.Visible), strconv.FormatFloat(cat.SortID, 'f', -1, 64)})
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

// allCategories reads the unpaginated list used to find a category by id
func allCategories(ctx context.Context, a *app) ([]readmodel.Category, error) {
	resp, err := a.client.Get(ctx, "/shop/categories", url.Values{"all": {"true"}})
	if err != nil {
		return nil, err
	}
	return listing.AllCategories(resp.Body)
}

func findCategory(ctx context.Context, a *app, id string) (readmodel.Category, error) {
	cs, err := allCategories(ctx, a)
	if err != nil {
		return readmodel.Category{}, err
	}
	for _, c := range cs {
		if c.ID == id {
			return c, nil
		}
	}
	return readmodel.Category{}, fmt.Errorf("category %s not found", id)
}

func newCategoriesSaveCmd(opts *rootOptions) *cobra.Command {
	var (
		id, image string
		form      = views.NewCategoryForm()
	)
	c := &cobra.Command{
		Use:   "save",
		Short: "Create a category, or edit one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				v := views.NewCategoriesView(a.deps())
				f := form
				if id == "" {
					v.OpenCreate()
				} else {
					existing, err := findCategory(ctx, a, id)
					if err != nil {
						return err
					}
					v.OpenEdit(existing)
					f = v.Editor().Form
					flags := cmd.Flags()
					if flags.Changed("name") {
						f.Name = form.Name
					}
					if flags.Changed("visible") {
						f.Visible = form.Visible
					}
					if flags.Changed("sort") {
						f.SortID = form.SortID
					}
					if flags.Changed("type") {
						f.Type = form.Type
					}
				}

				if image != "" {
					file, closer, err := upload.FileFromPath(image)
					if err != nil {
						return err
					}
					defer closer.Close()
					f.Image = &file
				}

				saved, err := v.Save(ctx, f)
				if err != nil {
					return saveError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved category %s (%s)\n", saved.ID, saved.Name)
				return nil
			})
		},
	}
	c.Flags().StringVar(&id, "id", "", "id of the category to edit")
	c.Flags().StringVar(&form.Name, "name", "", "category name")
	c.Flags().BoolVar(&form.Visible, "visible", true, "show the category in the shop")
	c.Flags().StringVar(&form.SortID, "sort", "", "numeric sort id")
	c.Flags().StringVar(&form.Type, "type", "", "main or sub")
	c.Flags().StringVar(&image, "image", "", "image file to upload (max 5MB)")
	return c
}

func newCategoriesDeleteCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				target, err := findCategory(ctx, a, args[0])
				if err != nil {
					return err
				}
				v := views.NewCategoriesView(a.deps())
				if err := v.Delete(ctx, target, confirmer(cmd, yes)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", target.ID)
				return nil
			})
		},
	}
	c.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return c
}

// ============================================
// Products
// ============================================

func newProductsCmd(opts *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product"},
		Short:   "List, create, edit and delete products",
	}
	c.AddCommand(newProductsListCmd(opts), newProductsSaveCmd(opts), newProductsDeleteCmd(opts))
	return c
}

func newProductsListCmd(opts *rootOptions) *cobra.Command {
	var pf pageFlags
	c := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				v := views.NewProductsView(a.deps())
				if err := pf.apply(v); err != nil {
					return err
				}
				snap, err := v.Load(ctx)
				if err != nil {
					return err
				}

				t := table(cmd.OutOrStdout(), "ID", "NAME", "PRICE", "DISCOUNTED", "CATEGORY", "VISIBLE", "IN STOCK")
				for _, p := range snap.Items {
					discounted := "-"
					if p.DiscountedPrice != nil {
						discounted = readmodel.FormatMoney(*p.DiscountedPrice)
					}
					category := v.CategoryName(ctx, p)
					if category == "" {
						category = "-"
					}
					t.Append([]string{p.ID, p.Name, readmodel.FormatMoney(p.Price), discounted, category, yesNo(p.Visible), yesNo(p.IsInStock)})
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

// findProduct walks the product pages until id turns up
func findProduct(ctx context.Context, a *app, id string) (readmodel.Product, error) {
	v := views.NewProductsView(a.deps())
	if err := v.SetLimit(50); err != nil {
		return readmodel.Product{}, err
	}
	for page := 1; ; page++ {
		v.SetPage(page)
		snap, err := v.Load(ctx)
		if err != nil {
			return readmodel.Product{}, err
		}
		for _, p := range snap.Items {
			if p.ID == id {
				return p, nil
			}
		}
		if page >= snap.Pages || len(snap.Items) == 0 {
			return readmodel.Product{}, fmt.Errorf("product %s not found", id)
		}
	}
}

func newProductsSaveCmd(opts *rootOptions) *cobra.Command {
	var (
		id, image string
		form      = views.NewProductForm()
	)
	c := &cobra.Command{
		Use:   "save",
		Short: "Create a product, or edit one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				v := views.NewProductsView(a.deps())
				f := form
				if id == "" {
					v.OpenCreate()
				} else {
					existing, err := findProduct(ctx, a, id)
					if err != nil {
						return err
					}
					v.OpenEdit(existing)
					f = v.Editor().Form
					flags := cmd.Flags()
					if flags.Changed("name") {
						f.Name = form.Name
					}
					if flags.Changed("price") {
						f.Price = form.Price
					}
					if flags.Changed("discounted") {
						f.DiscountedPrice = form.DiscountedPrice
					}
					if flags.Changed("description") {
						f.Description = form.Description
					}
					if flags.Changed("category") {
						f.CategoryID = form.CategoryID
					}
					if flags.Changed("visible") {
						f.Visible = form.Visible
					}
					if flags.Changed("in-stock") {
						f.IsInStock = form.IsInStock
					}
				}

				if image != "" {
					file, closer, err := upload.FileFromPath(image)
					if err != nil {
						return err
					}
					defer closer.Close()
					f.Image = &file
				}

				saved, err := v.Save(ctx, f)
				if err != nil {
					return saveError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved product %s (%s)\n", saved.ID, saved.Name)
				return nil
			})
		},
	}
	c.Flags().StringVar(&id, "id", "", "id of the product to edit")
	c.Flags().StringVar(&form.Name, "name", "", "product name")
	c.Flags().StringVar(&form.Price, "price", "", "price")
	c.Flags().StringVar(&form.DiscountedPrice, "discounted", "", "discounted price")
	c.Flags().StringVar(&form.Description, "description", "", "description")
	c.Flags().StringVar(&form.CategoryID, "category", "", "category id")
	c.Flags().BoolVar(&form.Visible, "visible", true, "show the product in the shop")
	c.Flags().BoolVar(&form.IsInStock, "in-stock", true, "product is in stock")
	c.Flags().StringVar(&image, "image", "", "image file to upload (max 5MB)")
	return c
}

func newProductsDeleteCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runSignedIn(cmd, func(ctx context.Context, a *app) error {
				target, err := findProduct(ctx, a, args[0])
				if err != nil {
					return err
				}
				v := views.NewProductsView(a.deps())
				if err := v.Delete(ctx, target, confirmer(cmd, yes)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted product %s\n", target.ID)
				return nil
			})
		},
	}
	c.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return c
}
