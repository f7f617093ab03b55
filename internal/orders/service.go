package orders

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/cart"
	"github.com/pawmart/storefront/internal/session"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/localstore"
	"github.com/pawmart/storefront/pkg/logger"
)

// StatusDelivered is the terminal status every locally recorded order
// carries. There is no fulfillment pipeline on this side; marking orders
// delivered immediately unlocks review eligibility.
const StatusDelivered = "delivered"

const defaultCurrency = "USD"

// Item is one purchased line, frozen at checkout time.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Order is a completed purchase as recorded locally. RemoteID is set when
// the backend accepted the order.
type Order struct {
	ID              string          `json:"id"`
	RemoteID        *int64          `json:"remote_id,omitempty"`
	Items           []Item          `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	DeliveryAddress string          `json:"delivery_address"`
	PlacedAt        time.Time       `json:"placed_at"`
}

// Payment is the card detail for the mock gateway. Nothing here leaves the
// process; the gateway only validates shape and expiry.
type Payment struct {
	CardNumber string `json:"card_number" validate:"required"`
	HolderName string `json:"holder_name" validate:"required"`
	ExpMonth   int    `json:"exp_month" validate:"required,min=1,max=12"`
	ExpYear    int    `json:"exp_year" validate:"required"`
	CVC        string `json:"cvc" validate:"required,len=3"`
}

// CheckoutInput is what the shopper submits to place the order.
type CheckoutInput struct {
	DeliveryAddress string  `json:"delivery_address" validate:"required"`
	Payment         Payment `json:"payment" validate:"required"`
}

type cartSource interface {
	Lines() []cart.Line
	Subtotal() decimal.Decimal
	Clear(ctx context.Context) cart.Outcome
}

type orderAPI interface {
	CreateOrder(ctx context.Context, input backend.CreateOrderInput) (*backend.CreateOrderResult, error)
	FetchOrderHistory(ctx context.Context, email string) ([]backend.OrderRecord, error)
}

type identitySource interface {
	Current() session.Owner
}

// ServiceParams groups dependencies for the order service. API may be nil
// for a backend-less storefront.
type ServiceParams struct {
	KV       localstore.KV
	Cart     cartSource
	API      orderAPI
	Identity identitySource
	Logger   *logger.Logger
}

// Service places orders and serves purchase history.
type Service interface {
	// Checkout charges the mock gateway, records the order, mirrors it to
	// the backend for signed-in shoppers, and clears the cart.
	Checkout(ctx context.Context, input CheckoutInput) (*Order, error)
	History(ctx context.Context) ([]Order, error)
	// HasPurchased reports whether a delivered order of the current owner
	// contains the product. Review eligibility is built on this.
	HasPurchased(ctx context.Context, productID string) bool
}

type service struct {
	kv       localstore.KV
	cart     cartSource
	api      orderAPI
	identity identitySource
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.KV == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local store is required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	if params.Identity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identity source is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		kv:       params.KV,
		cart:     params.Cart,
		api:      params.API,
		identity: params.Identity,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*Order, error) {
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err := s.authorizePayment(input.Payment); err != nil {
		return nil, err
	}

	owner := s.identity.Current()
	order := Order{
		ID:              uuid.NewString(),
		Items:           itemsFromLines(lines),
		Total:           s.cart.Subtotal(),
		Currency:        defaultCurrency,
		Status:          StatusDelivered,
		DeliveryAddress: input.DeliveryAddress,
		PlacedAt:        s.now().UTC(),
	}

	if owner.Authenticated() && s.api != nil {
		result, err := s.api.CreateOrder(ctx, backend.CreateOrderInput{
			Items:           orderItemInputs(lines),
			Total:           order.Total,
			Currency:        order.Currency,
			DeliveryAddress: order.DeliveryAddress,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "place order")
		}
		order.RemoteID = &result.OrderID
	}

	history := s.load(ctx, owner)
	history = append(history, order)
	s.save(ctx, owner, history)

	s.cart.Clear(ctx)
	s.logg.Info(s.logg.WithOwnerID(ctx, owner.UserID), fmt.Sprintf("order %s placed", order.ID))
	return &order, nil
}

// History prefers the backend's order history for signed-in shoppers and
// degrades to the locally saved orders when it is unreachable. Local
// orders the backend never saw are kept either way.
func (s *service) History(ctx context.Context) ([]Order, error) {
	owner := s.identity.Current()
	history := s.load(ctx, owner)

	if owner.Authenticated() && owner.Email != "" && s.api != nil {
		records, err := s.api.FetchOrderHistory(ctx, owner.Email)
		if err != nil {
			s.logg.Warn(s.logg.WithOwnerID(ctx, owner.UserID), "orders.history.remote_unavailable")
		} else {
			remote := ordersFromRecords(records)
			for _, order := range history {
				if order.RemoteID == nil {
					remote = append(remote, order)
				}
			}
			history = remote
		}
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].PlacedAt.After(history[j].PlacedAt)
	})
	return history, nil
}

// ordersFromRecords regroups the backend's flattened per-product rows
// into orders keyed by delivery id.
func ordersFromRecords(records []backend.OrderRecord) []Order {
	orders := make([]Order, 0)
	index := map[string]int{}
	for _, record := range records {
		quantity := 1
		if record.Quantity.Present && record.Quantity.Value > 0 {
			quantity = record.Quantity.Value
		}
		unitPrice := record.TotalPrice.Decimal
		if quantity > 1 {
			unitPrice = record.TotalPrice.Div(decimal.NewFromInt(int64(quantity)))
		}
		item := Item{
			ProductID: record.ProductID.String(),
			Name:      record.ProductName,
			UnitPrice: unitPrice,
			Quantity:  quantity,
		}

		pos, seen := index[record.DeliveryID]
		if !seen || record.DeliveryID == "" {
			placedAt, _ := time.Parse("2006-01-02", record.OrderDate)
			orders = append(orders, Order{
				ID:              record.DeliveryID,
				Items:           []Item{item},
				Total:           record.TotalPrice.Decimal,
				Currency:        defaultCurrency,
				Status:          record.Status,
				DeliveryAddress: record.DeliveryAddress,
				PlacedAt:        placedAt,
			})
			if record.DeliveryID != "" {
				index[record.DeliveryID] = len(orders) - 1
			}
			continue
		}
		orders[pos].Items = append(orders[pos].Items, item)
		orders[pos].Total = orders[pos].Total.Add(record.TotalPrice.Decimal)
	}
	return orders
}

func (s *service) HasPurchased(ctx context.Context, productID string) bool {
	if productID == "" {
		return false
	}
	for _, order := range s.load(ctx, s.identity.Current()) {
		if order.Status != StatusDelivered {
			continue
		}
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true
			}
		}
	}
	return false
}

// authorizePayment is the mock gateway: shape and expiry checks only,
// every well-formed card is approved.
func (s *service) authorizePayment(payment Payment) error {
	number := strings.ReplaceAll(payment.CardNumber, " ", "")
	if len(number) < 12 || len(number) > 19 {
		return pkgerrors.New(pkgerrors.CodeValidation, "card number is invalid")
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return pkgerrors.New(pkgerrors.CodeValidation, "card number is invalid")
		}
	}
	if payment.ExpMonth < 1 || payment.ExpMonth > 12 {
		return pkgerrors.New(pkgerrors.CodeValidation, "card expiry is invalid")
	}
	now := s.now().UTC()
	endOfMonth := time.Date(payment.ExpYear, time.Month(payment.ExpMonth), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	if !now.Before(endOfMonth) {
		return pkgerrors.New(pkgerrors.CodeValidation, "card is expired")
	}
	if len(payment.CVC) != 3 {
		return pkgerrors.New(pkgerrors.CodeValidation, "card cvc is invalid")
	}
	return nil
}

func (s *service) load(ctx context.Context, owner session.Owner) []Order {
	var history []Order
	if _, err := s.kv.Get(ctx, localstore.NamespaceOrders, ownerKey(owner), &history); err != nil {
		s.logg.Error(ctx, "orders.load_failed", err)
	}
	return history
}

func (s *service) save(ctx context.Context, owner session.Owner, history []Order) {
	if err := s.kv.Put(ctx, localstore.NamespaceOrders, ownerKey(owner), history); err != nil {
		s.logg.Error(ctx, "orders.save_failed", err)
	}
}

func ownerKey(owner session.Owner) string {
	if !owner.Authenticated() {
		return "anonymous"
	}
	return "user:" + owner.UserID
}

func itemsFromLines(lines []cart.Line) []Item {
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, Item{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return items
}

// orderItemInputs converts cart lines to the backend payload, skipping
// lines with no remote product identity.
func orderItemInputs(lines []cart.Line) []backend.OrderItemInput {
	inputs := make([]backend.OrderItemInput, 0, len(lines))
	for _, line := range lines {
		if line.Surrogate {
			continue
		}
		productID, err := strconv.ParseInt(line.ProductID, 10, 64)
		if err != nil {
			continue
		}
		inputs = append(inputs, backend.OrderItemInput{
			ProductID:   productID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice,
		})
	}
	return inputs
}
