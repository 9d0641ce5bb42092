package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/miravelle/modora-backend/api/middleware"
	"github.com/miravelle/modora-backend/api/responses"
	"github.com/miravelle/modora-backend/internal/checkout"
	pkgerrors "github.com/miravelle/modora-backend/pkg/errors"
	"github.com/miravelle/modora-backend/pkg/logger"
)

// CheckoutCreateSession opens a hosted payment session for a pending order.
func CheckoutCreateSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		rawUser := middleware.UserIDFromContext(r.Context())
		if rawUser == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		userID, err := uuid.Parse(rawUser)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity"))
			return
		}

		rawOrder := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if rawOrder == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}
		orderID, err := uuid.Parse(rawOrder)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		session, err := svc.CreateSession(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}
