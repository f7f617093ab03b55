package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/pkg/types"
)

// CartLine is one row of the remote cart as the backend serializes it.
type CartLine struct {
	ID          int64           `json:"id"`
	ProductID   types.FlexInt   `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       types.FlexPrice `json:"price"`
	Quantity    types.FlexInt   `json:"quantity"`
	ImageURL    string          `json:"image_url"`
	Description string          `json:"description"`
}

// AddCartItemInput is the payload for add and merge calls.
type AddCartItemInput struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    string          `json:"image_url"`
	Description string          `json:"description"`
}

type cartEnvelope struct {
	Items []CartLine `json:"items"`
	Count int        `json:"count"`
}

// FetchCart returns the authenticated user's remote cart lines.
func (c *Client) FetchCart(ctx context.Context) ([]CartLine, error) {
	var envelope cartEnvelope
	if err := c.do(ctx, http.MethodGet, "/cart/", nil, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// AddCartItem pushes one line to the remote cart. The backend coalesces
// duplicate product ids server-side.
func (c *Client) AddCartItem(ctx context.Context, input AddCartItemInput) (*CartLine, error) {
	var envelope struct {
		Item CartLine `json:"item"`
	}
	if err := c.do(ctx, http.MethodPost, "/cart/add/", nil, input, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Item, nil
}

// UpdateCartItem sets the quantity of a remote line by its server id.
func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, quantity int) error {
	body := map[string]int{"quantity": quantity}
	path := fmt.Sprintf("/cart/item/%d/", itemID)
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

// RemoveCartItem deletes a remote line by its server id.
func (c *Client) RemoveCartItem(ctx context.Context, itemID int64) error {
	path := fmt.Sprintf("/cart/item/%d/remove/", itemID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ClearCart empties the remote cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/cart/clear/", nil, nil, nil)
}

// MergeCart folds locally accumulated lines into the account cart and
// returns the merged result.
func (c *Client) MergeCart(ctx context.Context, items []AddCartItemInput) ([]CartLine, error) {
	body := map[string]any{"items": items}
	var envelope cartEnvelope
	if err := c.do(ctx, http.MethodPost, "/cart/merge/", nil, body, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}
