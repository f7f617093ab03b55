package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/pkg/types"
)

// OrderItemInput is one purchased line inside an order creation request.
type OrderItemInput struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// CreateOrderInput is the checkout payload.
type CreateOrderInput struct {
	Items           []OrderItemInput `json:"items"`
	Total           decimal.Decimal  `json:"total"`
	Currency        string           `json:"currency"`
	DeliveryAddress string           `json:"delivery_address"`
}

// CreateOrderResult carries the backend-assigned order id.
type CreateOrderResult struct {
	OrderID int64  `json:"order_id"`
	Message string `json:"message"`
}

// CreateOrder places the order for the authenticated user.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	var result CreateOrderResult
	if err := c.do(ctx, http.MethodPost, "/orders/create/", nil, input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OrderRecord is one fulfilled line from the order history endpoint. The
// backend flattens orders to one row per product, keyed by delivery id.
type OrderRecord struct {
	DeliveryID      string           `json:"delivery_id"`
	ProductID       types.FlexString `json:"product_id"`
	ProductName     string           `json:"product_name"`
	Quantity        types.FlexInt    `json:"quantity"`
	TotalPrice      types.FlexPrice  `json:"total_price"`
	DeliveryAddress string           `json:"delivery_address"`
	Status          string           `json:"status"`
	OrderDate       string           `json:"order_date"`
}

type orderHistoryEnvelope struct {
	Orders []OrderRecord `json:"orders"`
}

// FetchOrderHistory lists the user's fulfilled order lines by email.
func (c *Client) FetchOrderHistory(ctx context.Context, email string) ([]OrderRecord, error) {
	query := url.Values{}
	query.Set("email", email)
	var envelope orderHistoryEnvelope
	if err := c.do(ctx, http.MethodGet, "/orders/history/", query, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Orders, nil
}
