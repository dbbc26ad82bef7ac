package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"meterpay/backend/libs/httpx"
	"meterpay/backend/libs/plan"
	"meterpay/backend/services/checkout-service/internal/checkout"
	"meterpay/backend/services/checkout-service/internal/store"
)

type errorResponse struct {
	Error   string      `json:"error"`
	Field   string      `json:"field,omitempty"`
	Session interface{} `json:"session,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	httpx.WriteJSON(w, status, errorResponse{Error: message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrIllegalTransition), errors.Is(err, checkout.ErrSettlementInFlight):
		return http.StatusConflict
	case errors.Is(err, plan.ErrPlanNotFound), errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrSettlementFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, session interface{}) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Session: session}

	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Error = verr.Message
		resp.Field = verr.Field
	case errors.Is(err, plan.ErrPlanNotFound):
		resp.Error = "Plan not found"
	case errors.Is(err, store.ErrSessionNotFound):
		resp.Error = "session not found"
	case errors.Is(err, checkout.ErrSettlementFailed):
		resp.Error = "payment could not be completed, please try again"
	case status == http.StatusInternalServerError:
		logger.Error("checkout request failed", zap.Error(err))
		resp.Error = "internal error"
	}
	httpx.WriteJSON(w, status, resp)
}
