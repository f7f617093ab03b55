package controllers

import (
	"net/http"

	"github.com/pawmart/storefront/api/responses"
	"github.com/pawmart/storefront/api/validators"
	"github.com/pawmart/storefront/internal/chat"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/logger"
)

// ChatOpen starts a fresh support conversation, replacing any live one.
func ChatOpen(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat unavailable"))
			return
		}
		conversation, err := svc.Open(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"conversation_id": conversation.ID()})
	}
}

type chatSendRequest struct {
	Content string `json:"content" validate:"required"`
}

// ChatSend posts a message into the live conversation.
func ChatSend(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat unavailable"))
			return
		}
		conversation := svc.Active()
		if conversation == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "no live conversation"))
			return
		}

		var payload chatSendRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := conversation.Send(payload.Content); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "sent"})
	}
}

// ChatEvents drains buffered inbound events without blocking. The
// presentation layer polls this between renders.
func ChatEvents(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat unavailable"))
			return
		}
		conversation := svc.Active()
		if conversation == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "no live conversation"))
			return
		}

		events := []chat.Event{}
	drain:
		for {
			select {
			case event, ok := <-conversation.Events():
				if !ok {
					break drain
				}
				events = append(events, event)
			default:
				break drain
			}
		}
		responses.WriteSuccess(w, map[string]any{"events": events, "count": len(events)})
	}
}

// ChatClose tears down the live conversation.
func ChatClose(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat unavailable"))
			return
		}
		_ = svc.Close()
		responses.WriteSuccess(w, map[string]string{"status": "closed"})
	}
}
