package views

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/example/ec-admin-console/internal/apiclient"
	"github.com/example/ec-admin-console/internal/events"
	"github.com/example/ec-admin-console/internal/listing"
	"github.com/example/ec-admin-console/internal/querycache"
	"github.com/example/ec-admin-console/internal/readmodel"
	"github.com/example/ec-admin-console/internal/upload"
)

// Deps are the shared services every view is built from
type Deps struct {
	Client   *apiclient.Client
	Cache    *querycache.Cache
	Bus      *events.Bus
	Uploader *upload.Uploader
}

func pageParams(p readmodel.PageState) url.Values {
	return url.Values{"page": {strconv.Itoa(p.Page)}, "limit": {strconv.Itoa(p.Limit)}}
}

// CategoriesView lists categories by sort order and edits them
type CategoriesView struct {
	*Collection[readmodel.Category]
	deps   Deps
	editor *editor[CategoryForm]
}

func NewCategoriesView(d Deps) *CategoriesView {
	fetch := func(ctx context.Context, p readmodel.PageState) (readmodel.ListResult[readmodel.Category], error) {
		resp, err := d.Client.Get(ctx, "/shop/categories", pageParams(p))
		if err != nil {
			return readmodel.ListResult[readmodel.Category]{}, err
		}
		return listing.Categories(resp.Body, resp.Header, p.Limit)
	}
	return &CategoriesView{
		Collection: NewCollection(events.Categories, d.Cache, d.Bus, fetch),
		deps:       d,
		editor:     newEditor(NewCategoryForm),
	}
}

func (v *CategoriesView) OpenCreate() {
	v.editor.openCreate()
}

func (v *CategoriesView) OpenEdit(c readmodel.Category) {
	v.editor.openEdit(c.ID, CategoryFormFrom(c))
}

func (v *CategoriesView) CloseEditor() {
	v.editor.close()
}

func (v *CategoriesView) Editor() Editor[CategoryForm] {
	return v.editor.snapshot()
}

// Save creates, or updates the category being edited. Validation and upload
// failures never reach the API; any failure leaves the editor open with form.
func (v *CategoriesView) Save(ctx context.Context, form CategoryForm) (readmodel.Category, error) {
	if err := form.Validate(); err != nil {
		v.editor.fail(form, err)
		return readmodel.Category{}, err
	}

	payload := form.payload()
	if form.Image != nil {
		imageURL, err := v.deps.Uploader.Upload(ctx, *form.Image)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrUploadFailed, err)
			v.editor.fail(form, err)
			return readmodel.Category{}, err
		}
		payload.ImageURL = imageURL
	}

	id := v.editor.editingID()
	var (
		resp *apiclient.Response
		err  error
	)
	if id == "" {
		resp, err = v.deps.Client.Post(ctx, "/shop/categories", payload)
	} else {
		resp, err = v.deps.Client.Put(ctx, "/shop/categories/"+url.PathEscape(id), payload)
	}
	if err != nil {
		v.editor.fail(form, err)
		return readmodel.Category{}, err
	}

	v.editor.close()
	v.deps.Cache.Invalidate(events.Categories)
	v.deps.Cache.Invalidate(events.Dashboard)

	saved := readmodel.Category{ID: id, Name: payload.Name, Visible: payload.Visible, ImageURL: payload.ImageURL}
	if c, err := listing.CategoryFrom(resp.Body); err == nil && c.ID != "" {
		saved = c
	}
	log.Printf("[Views] Saved category %s", saved.ID)
	return saved, nil
}

// Delete asks confirm first; a refusal sends nothing and returns ErrNotConfirmed
func (v *CategoriesView) Delete(ctx context.Context, c readmodel.Category, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(deletePrompt("category", c.Name)) {
		return ErrNotConfirmed
	}
	if _, err := v.deps.Client.Delete(ctx, "/shop/categories/"+url.PathEscape(c.ID)); err != nil {
		return err
	}
	v.deps.Cache.Invalidate(events.Categories)
	v.deps.Cache.Invalidate(events.Dashboard)
	log.Printf("[Views] Deleted category %s", c.ID)
	return nil
}
