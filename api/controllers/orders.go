package controllers

import (
	"net/http"

	"github.com/pawmart/storefront/api/responses"
	"github.com/pawmart/storefront/api/validators"
	"github.com/pawmart/storefront/internal/orders"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/logger"
)

type checkoutRequest struct {
	DeliveryAddress string `json:"delivery_address" validate:"required"`
	CardNumber      string `json:"card_number" validate:"required"`
	HolderName      string `json:"holder_name" validate:"required"`
	ExpMonth        int    `json:"exp_month" validate:"required,min=1,max=12"`
	ExpYear         int    `json:"exp_year" validate:"required"`
	CVC             string `json:"cvc" validate:"required,len=3"`
}

// OrdersCheckout places the order for the current cart.
func OrdersCheckout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Checkout(r.Context(), orders.CheckoutInput{
			DeliveryAddress: payload.DeliveryAddress,
			Payment: orders.Payment{
				CardNumber: payload.CardNumber,
				HolderName: payload.HolderName,
				ExpMonth:   payload.ExpMonth,
				ExpYear:    payload.ExpYear,
				CVC:        payload.CVC,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrdersHistory returns the owner's saved orders, newest first.
func OrdersHistory(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}
		history, err := svc.History(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"orders": history, "count": len(history)})
	}
}
