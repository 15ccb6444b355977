package views

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/ec-admin-console/internal/forms"
	"github.com/example/ec-admin-console/internal/readmodel"
	"github.com/example/ec-admin-console/internal/upload"
)

var (
	ErrUploadFailed = errors.New("image upload failed")
	ErrNotConfirmed = errors.New("deletion not confirmed")
)

const msgUploadFailed = "Failed to upload image. Please try a smaller file."

// SaveMessage is the line shown in the editor after a failed save, or "" on success
func SaveMessage(err error) string {
	if err == nil {
		return ""
	}
	if fe, ok := forms.Field(err); ok {
		return fe.Message
	}
	if errors.Is(err, ErrUploadFailed) {
		return msgUploadFailed
	}
	return err.Error()
}

// ValidationError is a form problem caught before any request
type ValidationError = forms.FieldError

// Confirmer asks the user to approve a destructive action
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a plain function to Confirmer
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

// AlwaysConfirm approves everything, for --yes style flags
var AlwaysConfirm = ConfirmFunc(func(string) bool { return true })

// ============================================
// Categories
// ============================================

type CategoryForm struct {
	Name             string       `json:"name" validate:"notblank"`
	Visible          bool         `json:"visible"`
	SortID           string       `json:"sortId" validate:"omitempty,numeric"`
	Type             string       `json:"type" validate:"omitempty,oneof=main sub"`
	ExistingImageURL string       `json:"-"`
	Image            *upload.File `json:"-"`
}

// NewCategoryForm is the blank "Add Category" form
func NewCategoryForm() CategoryForm {
	return CategoryForm{Visible: true}
}

// CategoryFormFrom prefills the editor from an existing category
func CategoryFormFrom(c readmodel.Category) CategoryForm {
	return CategoryForm{
		Name:             c.Name,
		Visible:          c.Visible,
		Type:             c.Type,
		ExistingImageURL: c.ImageURL,
	}
}

var categoryMessages = forms.Messages{
	"name":   "Name is required",
	"sortId": "Sort order must be a number",
	"type":   "Type must be main or sub",
}

func (f CategoryForm) Validate() error {
	return forms.Check(f, categoryMessages)
}

type categoryPayload struct {
	Name     string   `json:"name"`
	Visible  bool     `json:"visible"`
	SortID   *float64 `json:"sortId,omitempty"`
	Type     string   `json:"type,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

func (f CategoryForm) payload() categoryPayload {
	p := categoryPayload{
		Name:    strings.TrimSpace(f.Name),
		Visible: f.Visible,
		Type:    f.Type,
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(f.SortID), 64); err == nil {
		p.SortID = &v
	}
	return p
}

// ============================================
// Products
// ============================================

type ProductForm struct {
	Name             string       `json:"name" validate:"notblank"`
	Price            string       `json:"price" validate:"omitempty,numeric"`
	DiscountedPrice  string       `json:"discountedPrice" validate:"omitempty,numeric"`
	Description      string       `json:"description"`
	CategoryID       string       `json:"categoryid"`
	Visible          bool         `json:"visible"`
	IsInStock        bool         `json:"isInStock"`
	ExistingImageURL string       `json:"-"`
	Image            *upload.File `json:"-"`
}

// NewProductForm is the blank "Add Product" form
func NewProductForm() ProductForm {
	return ProductForm{Visible: true, IsInStock: true}
}

// ProductFormFrom prefills the editor from an existing product
func ProductFormFrom(p readmodel.Product) ProductForm {
	f := ProductForm{
		Name:             p.Name,
		Price:            strconv.FormatFloat(p.Price, 'f', -1, 64),
		Description:      p.Description,
		CategoryID:       p.CategoryID,
		Visible:          p.Visible,
		IsInStock:        p.IsInStock,
		ExistingImageURL: p.ImageURL,
	}
	if p.DiscountedPrice != nil {
		f.DiscountedPrice = strconv.FormatFloat(*p.DiscountedPrice, 'f', -1, 64)
	}
	return f
}

var productMessages = forms.Messages{
	"name":            "Name is required",
	"price":           "Price must be a number",
	"discountedPrice": "Discounted price must be a number",
}

func (f ProductForm) Validate() error {
	f.Price = strings.TrimSpace(f.Price)
	f.DiscountedPrice = strings.TrimSpace(f.DiscountedPrice)
	if err := forms.Check(f, productMessages); err != nil {
		return err
	}
	if price, _ := strconv.ParseFloat(f.Price, 64); price < 0 {
		return &ValidationError{Field: "price", Message: "Price cannot be negative"}
	}
	if f.DiscountedPrice != "" {
		if d, _ := strconv.ParseFloat(f.DiscountedPrice, 64); d < 0 {
			return &ValidationError{Field: "discountedPrice", Message: "Discounted price cannot be negative"}
		}
	}
	return nil
}

type productPayload struct {
	Name            string   `json:"name"`
	Price           float64  `json:"price"`
	DiscountedPrice *float64 `json:"discountedPrice,omitempty"`
	Description     string   `json:"description,omitempty"`
	CategoryID      string   `json:"categoryid,omitempty"`
	Visible         bool     `json:"visible"`
	IsInStock       bool     `json:"isInStock"`
	ImageURL        string   `json:"imageUrl,omitempty"`
}

// payload assumes Validate passed; an empty price is sent as 0
func (f ProductForm) payload() productPayload {
	p := productPayload{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		CategoryID:  f.CategoryID,
		Visible:     f.Visible,
		IsInStock:   f.IsInStock,
	}
	p.Price, _ = strconv.ParseFloat(strings.TrimSpace(f.Price), 64)
	if d := strings.TrimSpace(f.DiscountedPrice); d != "" {
		v, _ := strconv.ParseFloat(d, 64)
		p.DiscountedPrice = &v
	}
	return p
}

// deletePrompt is shown before any destructive request
func deletePrompt(kind, name string) string {
	return fmt.Sprintf("Delete %s \"%s\"? This cannot be undone.", kind, name)
}
