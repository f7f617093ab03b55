package cart

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/backend"
)

// RemoteLine is a row of the remote cart, normalized for the store.
type RemoteLine struct {
	LineID      int64
	ProductID   string
	Name        string
	UnitPrice   decimal.Decimal
	Quantity    int
	ImageURL    string
	Description string
}

// Remote mirrors accepted local mutations to the backend cart service.
// Every call is best-effort: the store never blocks a local mutation on
// any of these.
type Remote interface {
	Fetch(ctx context.Context) ([]RemoteLine, error)
	Add(ctx context.Context, line Line) error
	UpdateQuantity(ctx context.Context, backendLineID int64, quantity int) error
	Remove(ctx context.Context, backendLineID int64) error
	Clear(ctx context.Context) error
	Merge(ctx context.Context, lines []Line) ([]RemoteLine, error)
}

type backendRemote struct {
	api *backend.Client
}

// NewBackendRemote adapts the backend HTTP client to the store's Remote
// interface.
func NewBackendRemote(api *backend.Client) Remote {
	return &backendRemote{api: api}
}

func (r *backendRemote) Fetch(ctx context.Context) ([]RemoteLine, error) {
	items, err := r.api.FetchCart(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]RemoteLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, normalizeRemoteLine(item))
	}
	return lines, nil
}

func (r *backendRemote) Add(ctx context.Context, line Line) error {
	input, ok := addInputFromLine(line)
	if !ok {
		return nil
	}
	_, err := r.api.AddCartItem(ctx, input)
	return err
}

func (r *backendRemote) UpdateQuantity(ctx context.Context, backendLineID int64, quantity int) error {
	return r.api.UpdateCartItem(ctx, backendLineID, quantity)
}

func (r *backendRemote) Remove(ctx context.Context, backendLineID int64) error {
	return r.api.RemoveCartItem(ctx, backendLineID)
}

func (r *backendRemote) Clear(ctx context.Context) error {
	return r.api.ClearCart(ctx)
}

func (r *backendRemote) Merge(ctx context.Context, lines []Line) ([]RemoteLine, error) {
	inputs := make([]backend.AddCartItemInput, 0, len(lines))
	for _, line := range lines {
		if input, ok := addInputFromLine(line); ok {
			inputs = append(inputs, input)
		}
	}
	items, err := r.api.MergeCart(ctx, inputs)
	if err != nil {
		return nil, err
	}
	merged := make([]RemoteLine, 0, len(items))
	for _, item := range items {
		merged = append(merged, normalizeRemoteLine(item))
	}
	return merged, nil
}

// addInputFromLine converts a local line to the backend payload. Lines with
// surrogate or non-numeric identities have no remote representation.
func addInputFromLine(line Line) (backend.AddCartItemInput, bool) {
	if line.Surrogate {
		return backend.AddCartItemInput{}, false
	}
	productID, err := strconv.ParseInt(line.ProductID, 10, 64)
	if err != nil {
		return backend.AddCartItemInput{}, false
	}
	return backend.AddCartItemInput{
		ProductID:   productID,
		ProductName: line.Name,
		Price:       line.UnitPrice,
		Quantity:    line.Quantity,
		ImageURL:    line.ImageURL,
		Description: line.Description,
	}, true
}

func normalizeRemoteLine(item backend.CartLine) RemoteLine {
	quantity := 1
	if item.Quantity.Present && item.Quantity.Value > 0 {
		quantity = item.Quantity.Value
	}
	productID := ""
	if item.ProductID.Present {
		productID = strconv.Itoa(item.ProductID.Value)
	}
	return RemoteLine{
		LineID:      item.ID,
		ProductID:   productID,
		Name:        item.ProductName,
		UnitPrice:   item.Price.Decimal,
		Quantity:    quantity,
		ImageURL:    item.ImageURL,
		Description: item.Description,
	}
}
