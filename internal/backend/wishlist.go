package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/pkg/types"
)

// WishlistLine is one saved item on the remote wishlist.
type WishlistLine struct {
	ID          int64           `json:"id"`
	ProductID   types.FlexInt   `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       types.FlexPrice `json:"price"`
	ImageURL    string          `json:"image_url"`
	Description string          `json:"description"`
}

// AddWishlistItemInput is the payload for wishlist adds.
type AddWishlistItemInput struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Description string          `json:"description"`
}

// FetchWishlist returns the remote wishlist lines.
func (c *Client) FetchWishlist(ctx context.Context) ([]WishlistLine, error) {
	var envelope struct {
		Items []WishlistLine `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/wishlist/", nil, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// AddWishlistItem saves a product on the remote wishlist.
func (c *Client) AddWishlistItem(ctx context.Context, input AddWishlistItemInput) (*WishlistLine, error) {
	var envelope struct {
		Item WishlistLine `json:"item"`
	}
	if err := c.do(ctx, http.MethodPost, "/wishlist/add/", nil, input, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Item, nil
}

// RemoveWishlistProduct deletes a wishlist entry by product id.
func (c *Client) RemoveWishlistProduct(ctx context.Context, productID int64) error {
	path := fmt.Sprintf("/wishlist/product/%d/remove/", productID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
