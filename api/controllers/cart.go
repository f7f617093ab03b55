package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/api/responses"
	"github.com/pawmart/storefront/api/validators"
	cartsvc "github.com/pawmart/storefront/internal/cart"
	"github.com/pawmart/storefront/internal/catalog"
	"github.com/pawmart/storefront/internal/session"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/logger"
)

// CartStore is the slice of the cart store the HTTP layer drives.
type CartStore interface {
	Lines() []cartsvc.Line
	Owner() session.Owner
	TotalQuantity() int
	Subtotal() decimal.Decimal
	Add(ctx context.Context, snap cartsvc.Snapshot, quantity int) cartsvc.Outcome
	SetQuantity(ctx context.Context, productID string, quantity int) cartsvc.Outcome
	Remove(ctx context.Context, productID string) cartsvc.Outcome
	Clear(ctx context.Context) cartsvc.Outcome
	Notice() (cartsvc.Notice, bool)
	ClearNotice()
}

type cartView struct {
	Lines         []cartLineView `json:"lines"`
	TotalQuantity int            `json:"total_quantity"`
	Subtotal      string         `json:"subtotal"`
}

type cartLineView struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
	MaxQuantity *int   `json:"max_quantity,omitempty"`
}

type mutationView struct {
	Event   string          `json:"event"`
	Message string          `json:"message,omitempty"`
	Cart    cartView        `json:"cart"`
	Notice  *cartsvc.Notice `json:"notice,omitempty"`
}

func newCartView(store CartStore) cartView {
	lines := store.Lines()
	view := cartView{
		Lines:         make([]cartLineView, 0, len(lines)),
		TotalQuantity: store.TotalQuantity(),
		Subtotal:      store.Subtotal().StringFixed(2),
	}
	for _, line := range lines {
		view.Lines = append(view.Lines, cartLineView{
			ProductID:   line.ProductID,
			Name:        line.Name,
			UnitPrice:   line.UnitPrice.StringFixed(2),
			Quantity:    line.Quantity,
			Subtotal:    line.Subtotal().StringFixed(2),
			ImageURL:    line.ImageURL,
			Description: line.Description,
			MaxQuantity: line.MaxQuantity,
		})
	}
	return view
}

func newMutationView(store CartStore, outcome cartsvc.Outcome) mutationView {
	view := mutationView{
		Event:   string(outcome.Kind),
		Message: outcome.Message,
		Cart:    newCartView(store),
	}
	if notice, ok := store.Notice(); ok {
		view.Notice = &notice
	}
	return view
}

// CartGet returns the current cart contents.
func CartGet(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		responses.WriteSuccess(w, newCartView(store))
	}
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,min=1"`
	Quantity  int   `json:"quantity"`
}

// CartAddItem resolves the product against the catalog and adds it to the
// cart. Stock rejections come back as a 200 with the rejection event; the
// cart is untouched and the notice carries the shopper-facing message.
func CartAddItem(store CartStore, catalogSvc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || catalogSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := catalogSvc.CartSnapshot(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome := store.Add(r.Context(), snap, payload.Quantity)
		responses.WriteSuccess(w, newMutationView(store, outcome))
	}
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CartSetQuantity updates a line's quantity; zero or less removes it.
func CartSetQuantity(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		productID := chi.URLParam(r, "productID")
		if productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome := store.SetQuantity(r.Context(), productID, payload.Quantity)
		responses.WriteSuccess(w, newMutationView(store, outcome))
	}
}

// CartRemoveItem drops a line from the cart.
func CartRemoveItem(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		productID := chi.URLParam(r, "productID")
		if productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		outcome := store.Remove(r.Context(), productID)
		responses.WriteSuccess(w, newMutationView(store, outcome))
	}
}

// CartClear empties the cart.
func CartClear(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		outcome := store.Clear(r.Context())
		responses.WriteSuccess(w, newMutationView(store, outcome))
	}
}

// CartNotice returns the live transient notice, if any.
func CartNotice(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		if notice, ok := store.Notice(); ok {
			responses.WriteSuccess(w, notice)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// CartDismissNotice clears the transient notice.
func CartDismissNotice(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		store.ClearNotice()
		responses.WriteSuccess(w, map[string]string{"status": "dismissed"})
	}
}
