package catalog

import (
	"context"
	"strconv"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/cart"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/pagination"
)

// Item is the storefront view of a catalog product. Stock keeps the raw
// ceiling (nil when the backend sent none); DisplayStock is what product
// pages show and defaults to 1 so stock-less products stay purchasable.
type Item struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url"`
	Category     string `json:"category"`
	Stock        *int   `json:"stock,omitempty"`
	DisplayStock int    `json:"display_stock"`
	OutOfStock   bool   `json:"out_of_stock"`
}

// ListFilter narrows a catalog listing.
type ListFilter struct {
	Query      string
	Category   string
	Pagination pagination.Params
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	API productAPI
}

type productAPI interface {
	ListProducts(ctx context.Context, params backend.ListProductsParams) ([]backend.Product, error)
	GetProduct(ctx context.Context, id int64) (*backend.Product, error)
}

// Service exposes the product catalog to the storefront.
type Service interface {
	List(ctx context.Context, filter ListFilter) ([]Item, error)
	Get(ctx context.Context, id int64) (*Item, error)
	// CartSnapshot resolves a product into the payload the cart needs,
	// carrying the true stock ceiling rather than the display default.
	CartSnapshot(ctx context.Context, id int64) (cart.Snapshot, error)
}

type service struct {
	api productAPI
}

// NewService builds a catalog service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product api is required")
	}
	return &service{api: params.API}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	products, err := s.api.ListProducts(ctx, backend.ListProductsParams{
		Query:      filter.Query,
		Category:   filter.Category,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(products))
	for _, product := range products {
		items = append(items, itemFromProduct(product))
	}
	return items, nil
}

func (s *service) Get(ctx context.Context, id int64) (*Item, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.api.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	item := itemFromProduct(*product)
	return &item, nil
}

func (s *service) CartSnapshot(ctx context.Context, id int64) (cart.Snapshot, error) {
	if id <= 0 {
		return cart.Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.api.GetProduct(ctx, id)
	if err != nil {
		return cart.Snapshot{}, err
	}
	return cart.Snapshot{
		ProductID:   strconv.FormatInt(product.ID, 10),
		Name:        product.Name,
		UnitPrice:   product.Price.Decimal,
		ImageURL:    product.ImageURL,
		Description: product.Description,
		Stock:       product.Stock.Ptr(),
	}, nil
}

func itemFromProduct(product backend.Product) Item {
	item := Item{
		ID:          product.ID,
		Name:        product.Name,
		Price:       product.Price.Decimal.StringFixed(2),
		Description: product.Description,
		ImageURL:    product.ImageURL,
		Category:    product.Category,
		Stock:       product.Stock.Ptr(),
	}
	// A product without stock data shows one available; an explicit zero is
	// sold out.
	switch {
	case item.Stock == nil:
		item.DisplayStock = 1
	case *item.Stock <= 0:
		item.DisplayStock = 0
		item.OutOfStock = true
	default:
		item.DisplayStock = *item.Stock
	}
	return item
}
