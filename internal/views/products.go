package views

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/example/ec-admin-console/internal/apiclient"
	"github.com/example/ec-admin-console/internal/events"
	"github.com/example/ec-admin-console/internal/listing"
	"github.com/example/ec-admin-console/internal/querycache"
	"github.com/example/ec-admin-console/internal/readmodel"
)

// CategoryLookupStaleTime is how long the full category list used for product labels is reused
const CategoryLookupStaleTime = 5 * time.Minute

// CategoryLookupKey is the cache key of the unpaginated category list
var CategoryLookupKey = querycache.NewKey(events.Categories, url.Values{"all": {"true"}})

// ProductsView lists products and edits them
type ProductsView struct {
	*Collection[readmodel.Product]
	deps   Deps
	editor *editor[ProductForm]
}

func NewProductsView(d Deps) *ProductsView {
	fetch := func(ctx context.Context, p readmodel.PageState) (readmodel.ListResult[readmodel.Product], error) {
		resp, err := d.Client.Get(ctx, "/shop/products", pageParams(p))
		if err != nil {
			return readmodel.ListResult[readmodel.Product]{}, err
		}
		return listing.Products(resp.Body, resp.Header, p.Limit)
	}
	return &ProductsView{
		Collection: NewCollection(events.Products, d.Cache, d.Bus, fetch),
		deps:       d,
		editor:     newEditor(NewProductForm),
	}
}

// Categories returns every category for the category picker and name lookup
func (v *ProductsView) Categories(ctx context.Context) ([]readmodel.Category, error) {
	val, err := v.deps.Cache.Fetch(ctx, CategoryLookupKey, CategoryLookupStaleTime, func(ctx context.Context) (any, error) {
		resp, err := v.deps.Client.Get(ctx, "/shop/categories", url.Values{"all": {"true"}})
		if err != nil {
			return nil, err
		}
		return listing.AllCategories(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	cs, ok := val.([]readmodel.Category)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value %T for categories", val)
	}
	return cs, nil
}

// CategoryName labels a product, preferring the name embedded by the API.
// An unknown category yields "".
func (v *ProductsView) CategoryName(ctx context.Context, p readmodel.Product) string {
	if p.CategoryName != "" {
		return p.CategoryName
	}
	if p.CategoryID == "" {
		return ""
	}
	cs, err := v.Categories(ctx)
	if err != nil {
		log.Printf("[Views] Category lookup failed: %v", err)
		return ""
	}
	return listing.CategoryNames(cs)[p.CategoryID]
}

func (v *ProductsView) OpenCreate() {
	v.editor.openCreate()
}

func (v *ProductsView) OpenEdit(p readmodel.Product) {
	v.editor.openEdit(p.ID, ProductFormFrom(p))
}

func (v *ProductsView) CloseEditor() {
	v.editor.close()
}

func (v *ProductsView) Editor() Editor[ProductForm] {
	return v.editor.snapshot()
}

// Save creates, or updates the product being edited
func (v *ProductsView) Save(ctx context.Context, form ProductForm) (readmodel.Product, error) {
	if err := form.Validate(); err != nil {
		v.editor.fail(form, err)
		return readmodel.Product{}, err
	}

	payload := form.payload()
	if form.Image != nil {
		imageURL, err := v.deps.Uploader.Upload(ctx, *form.Image)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrUploadFailed, err)
			v.editor.fail(form, err)
			return readmodel.Product{}, err
		}
		payload.ImageURL = imageURL
	}

	id := v.editor.editingID()
	var (
		resp *apiclient.Response
		err  error
	)
	if id == "" {
		resp, err = v.deps.Client.Post(ctx, "/shop/products", payload)
	} else {
		resp, err = v.deps.Client.Put(ctx, "/shop/products/"+url.PathEscape(id), payload)
	}
	if err != nil {
		v.editor.fail(form, err)
		return readmodel.Product{}, err
	}

	v.editor.close()
	v.deps.Cache.Invalidate(events.Products)
	v.deps.Cache.Invalidate(events.Dashboard)

	saved := readmodel.Product{
		ID:              id,
		Name:            payload.Name,
		Price:           payload.Price,
		DiscountedPrice: payload.DiscountedPrice,
		Description:     payload.Description,
		CategoryID:      payload.CategoryID,
		Visible:         payload.Visible,
		IsInStock:       payload.IsInStock,
		ImageURL:        payload.ImageURL,
	}
	if p, err := listing.ProductFrom(resp.Body); err == nil && p.ID != "" {
		saved = p
	}
	log.Printf("[Views] Saved product %s", saved.ID)
	return saved, nil
}

func (v *ProductsView) Delete(ctx context.Context, p readmodel.Product, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(deletePrompt("product", p.Name)) {
		return ErrNotConfirmed
	}
	if _, err := v.deps.Client.Delete(ctx, "/shop/products/"+url.PathEscape(p.ID)); err != nil {
		return err
	}
	v.deps.Cache.Invalidate(events.Products)
	v.deps.Cache.Invalidate(events.Dashboard)
	log.Printf("[Views] Deleted product %s", p.ID)
	return nil
}
