// Package listing turns the admin API's loosely shaped list responses into ListResults.
//
// Item priority: the body itself when it is an array, then each key of the
// resource's ItemKeys in order. Total priority: body.total, body.pagination.total,
// the X-Total-Count header, then the number of items. Zero, absent or
// non-numeric totals fall through to the next source. A body whose "data" is an
// object is treated as that object.
package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

const TotalCountHeader = "X-Total-Count"

// PageMode says where the page count comes from
type PageMode int

const (
	// DerivePages computes max(1, ceil(total/limit))
	DerivePages PageMode = iota
	// ServerPages trusts body.pages, defaulting to 1
	ServerPages
)

// Shape describes how one resource's list endpoint answers
type Shape struct {
	ItemKeys []string
	Mode     PageMode
}

var (
	CategoryShape = Shape{ItemKeys: []string{"items", "data"}, Mode: DerivePages}
	ProductShape  = Shape{ItemKeys: []string{"data", "items"}, Mode: ServerPages}
	OrderShape    = Shape{ItemKeys: []string{"data", "items"}, Mode: ServerPages}
)

// Page is a normalised list response with raw items still to be adapted
type Page struct {
	Items []map[string]any
	Total int
	Pages int
}

// Parse applies the item, total and page priorities for shape
func Parse(body []byte, header http.Header, shape Shape, limit int) (Page, error) {
	root, err := decode(body)
	if err != nil {
		return Page{}, err
	}

	var raw []any
	obj, _ := root.(map[string]any)
	if inner, ok := obj["data"].(map[string]any); ok {
		obj = inner
	}
	if arr, ok := root.([]any); ok {
		raw = arr
	} else if obj != nil {
		for _, key := range shape.ItemKeys {
			if arr, ok := obj[key].([]any); ok {
				raw = arr
				break
			}
		}
	}

	items := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			items = append(items, m)
		}
	}

	total := resolveTotal(obj, header, len(items))
	p := Page{Items: items, Total: total}
	switch shape.Mode {
	case ServerPages:
		p.Pages = serverPages(obj)
	default:
		p.Pages = Derive(total, limit)
	}
	return p, nil
}

// Derive is max(1, ceil(total/limit))
func Derive(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 1
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

func decode(body []byte) (any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding list response: %w", err)
	}
	return v, nil
}

func resolveTotal(obj map[string]any, header http.Header, count int) int {
	if obj != nil {
		if n, ok := positiveInt(obj["total"]); ok {
			return n
		}
		if pg, ok := obj["pagination"].(map[string]any); ok {
			if n, ok := positiveInt(pg["total"]); ok {
				return n
			}
		}
	}
	if header != nil {
		if n, ok := positiveInt(header.Get(TotalCountHeader)); ok {
			return n
		}
	}
	return count
}

func serverPages(obj map[string]any) int {
	if obj != nil {
		if n, ok := positiveInt(obj["pages"]); ok {
			return n
		}
		if pg, ok := obj["pagination"].(map[string]any); ok {
			if n, ok := positiveInt(pg["pages"]); ok {
				return n
			}
		}
	}
	return 1
}

func positiveInt(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f <= 0 {
		return 0, false
	}
	return int(f), true
}

// number accepts JSON numbers and numeric strings
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
