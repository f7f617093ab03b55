package controllers

import (
	"context"
	"net/http"

	"github.com/pawmart/storefront/api/responses"
	"github.com/pawmart/storefront/api/validators"
	"github.com/pawmart/storefront/internal/backend"
	cartsvc "github.com/pawmart/storefront/internal/cart"
	"github.com/pawmart/storefront/internal/session"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/logger"
)

// SessionManager is the slice of the session manager the HTTP layer uses.
type SessionManager interface {
	Current() session.Owner
	Login(ctx context.Context, usernameOrEmail, password string) (session.Owner, error)
	Logout(ctx context.Context)
}

// CartMerger folds anonymous cart lines into the account cart after login.
type CartMerger interface {
	Lines() []cartsvc.Line
	MergeRemote(ctx context.Context, lines []cartsvc.Line) error
}

// Registrar creates accounts on the backend.
type Registrar interface {
	Register(ctx context.Context, input backend.RegisterInput) (*backend.User, error)
}

type ownerView struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
}

func newOwnerView(owner session.Owner) ownerView {
	return ownerView{
		Authenticated: owner.Authenticated(),
		UserID:        owner.UserID,
		Email:         owner.Email,
		Name:          owner.Name,
	}
}

// SessionGet reports who the storefront currently belongs to.
func SessionGet(manager SessionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}
		responses.WriteSuccess(w, newOwnerView(manager.Current()))
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SessionLogin authenticates and folds the anonymous cart into the account
// cart. The lines are captured before the owner switch discards them.
func SessionLogin(manager SessionManager, merger CartMerger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var carried []cartsvc.Line
		if merger != nil {
			carried = merger.Lines()
		}

		owner, err := manager.Login(r.Context(), payload.Username, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if merger != nil && len(carried) > 0 {
			// Merge failures are not login failures; the cart store already
			// fell back to the remote cart.
			if err := merger.MergeRemote(r.Context(), carried); err != nil && logg != nil {
				logg.Warn(logg.WithOwnerID(r.Context(), owner.UserID), "session.login.cart_merge_failed")
			}
		}

		responses.WriteSuccess(w, newOwnerView(owner))
	}
}

// SessionLogout drops the backend session and resets to anonymous.
func SessionLogout(manager SessionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}
		manager.Logout(r.Context())
		responses.WriteSuccess(w, newOwnerView(session.Anonymous))
	}
}

type registerRequest struct {
	Username  string `json:"username" validate:"required,min=3"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SessionRegister creates a backend account. The shopper still logs in
// afterwards; registration does not switch the owner.
func SessionRegister(registrar Registrar, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registrar == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registration unavailable"))
			return
		}

		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Password != payload.Password2 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "passwords do not match"))
			return
		}

		user, err := registrar.Register(r.Context(), backend.RegisterInput{
			Username:  payload.Username,
			Email:     payload.Email,
			Password:  payload.Password,
			Password2: payload.Password2,
			FirstName: payload.FirstName,
			LastName:  payload.LastName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"username": user.Username,
			"email":    user.Email,
		})
	}
}
