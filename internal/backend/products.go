package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pawmart/storefront/pkg/pagination"
	"github.com/pawmart/storefront/pkg/types"
)

// Product is the catalog payload. quantity_in_stock may be absent entirely;
// FlexInt keeps that distinction.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       types.FlexPrice `json:"price"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category"`
	Stock       types.FlexInt   `json:"quantity_in_stock"`
}

// ListProductsParams filters the catalog listing.
type ListProductsParams struct {
	Query      string
	Category   string
	Pagination pagination.Params
}

// ListProducts fetches the catalog page. The backend answers either a bare
// array or an enveloped {products: [...]} payload depending on version, so
// both are tolerated.
func (c *Client) ListProducts(ctx context.Context, params ListProductsParams) ([]Product, error) {
	query := url.Values{}
	if params.Query != "" {
		query.Set("search", params.Query)
	}
	if params.Category != "" {
		query.Set("category", params.Category)
	}
	page := params.Pagination.Normalize()
	query.Set("page", strconv.Itoa(page.Page))
	query.Set("limit", strconv.Itoa(page.Limit))

	var raw []Product
	err := c.do(ctx, http.MethodGet, "/products/", query, nil, &raw)
	if err == nil {
		return raw, nil
	}

	var envelope struct {
		Products []Product `json:"products"`
	}
	if envErr := c.do(ctx, http.MethodGet, "/products/", query, nil, &envelope); envErr == nil {
		return envelope.Products, nil
	}
	return nil, err
}

// GetProduct fetches a single catalog entry.
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var product Product
	path := fmt.Sprintf("/products/%d/", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}
