package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"meterpay/backend/libs/httpx"
	"meterpay/backend/services/checkout-service/internal/checkout"
	"meterpay/backend/services/checkout-service/internal/feed"
	"meterpay/backend/services/checkout-service/internal/http/middleware"
	"meterpay/backend/services/checkout-service/internal/service"
	"meterpay/backend/services/checkout-service/internal/store"
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(sessionID string) (string, error)
}

// SessionHandlers exposes the checkout workflow over HTTP.
type SessionHandlers struct {
	svc    *service.CheckoutService
	tokens TokenIssuer
	feed   *feed.Server
	logger *zap.Logger
}

// NewSessionHandlers builds handlers. feedServer may be nil when the live feed is disabled.
func NewSessionHandlers(svc *service.CheckoutService, tokens TokenIssuer, feedServer *feed.Server, logger *zap.Logger) *SessionHandlers {
	return &SessionHandlers{svc: svc, tokens: tokens, feed: feedServer, logger: logger}
}

type createSessionResponse struct {
	SessionID string              `json:"sessionId"`
	Token     string              `json:"token"`
	Session   service.SessionView `json:"session"`
}

// Create handles POST /checkout/sessions.
func (h *SessionHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.svc.Create(r.Context())
		if err != nil {
			writeServiceError(w, h.logger, err, nil)
			return
		}
		tok, err := h.tokens.Issue(rec.ID)
		if err != nil {
			h.logger.Error("failed to issue session token", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, createSessionResponse{
			SessionID: rec.ID,
			Token:     tok,
			Session:   service.NewSessionView(rec),
		})
	}
}

// Get handles GET /checkout/session.
func (h *SessionHandlers) Get() http.HandlerFunc {
	return h.withSession(func(ctx context.Context, id string, r *http.Request) (*store.Record, error) {
		return h.svc.Get(ctx, id)
	})
}

type selectPlanRequest struct {
	PlanName string `json:"planName"`
}

// SelectPlan handles POST /checkout/session/plan.
func (h *SessionHandlers) SelectPlan() http.HandlerFunc {
	return h.withSession(func(ctx context.Context, id string, r *http.Request) (*store.Record, error) {
		var req selectPlanRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			return nil, &checkout.ValidationError{Field: "body", Message: err.Error()}
		}
		name := strings.TrimSpace(req.PlanName)
		if name == "" {
			return nil, &checkout.ValidationError{Field: "planName", Message: "planName is required"}
		}
		return h.svc.SelectPlan(ctx, id, name)
	})
}

type detailsRequest struct {
	ConsumerID   string          `json:"consumerId"`
	ConsumerName string          `json:"consumerName"`
	UnitsUsed    json.RawMessage `json:"unitsUsed"`
}

// SubmitDetails handles POST /checkout/session/details.
func (h *SessionHandlers) SubmitDetails() http.HandlerFunc {
	return h.withSession(func(ctx context.Context, id string, r *http.Request) (*store.Record, error) {
		var req detailsRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			return nil, &checkout.ValidationError{Field: "body", Message: err.Error()}
		}
		units, err := parseUnits(req.UnitsUsed)
		if err != nil {
			return nil, err
		}
		return h.svc.SubmitDetails(ctx, id, checkout.Details{
			ConsumerID:   req.ConsumerID,
			ConsumerName: req.ConsumerName,
			UnitsUsed:    units,
		})
	})
}

// parseUnits accepts a JSON integer or a string holding one, as typed into a form.
func parseUnits(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, &checkout.ValidationError{Field: "unitsUsed", Message: "unitsUsed is required"}
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, &checkout.ValidationError{Field: "unitsUsed", Message: "unitsUsed must be a positive integer"}
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, &checkout.ValidationError{Field: "unitsUsed", Message: "unitsUsed is required"}
		}
	}
	units, err := strconv.ParseInt(text, 10, 64)
	if err != nil || units <= 0 {
		return 0, &checkout.ValidationError{Field: "unitsUsed", Message: "unitsUsed must be a positive integer"}
	}
	return units, nil
}

// Back handles POST /checkout/session/back.
func (h *SessionHandlers) Back() http.HandlerFunc {
	return h.withSession(func(ctx context.Context, id string, r *http.Request) (*store.Record, error) {
		return h.svc.Back(ctx, id)
	})
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

// ChoosePaymentMethod handles POST /checkout/session/payment-method.
func (h *SessionHandlers) ChoosePaymentMethod() http.HandlerFunc {
	return h.withSession(func(ctx context.Context, id string, r *http.Request) (*store.Record, error) {
		var req paymentMethodRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			return nil, &checkout.ValidationError{Field: "body", Message: err.Error()}
		}
		return h.svc.ChoosePaymentMethod(ctx, id, req.PaymentMethod)
	})
}

// Pay handles POST /checkout/session/pay.
func (h *SessionHandlers) Pay() http.HandlerFunc {
	return h.withSession(func(ctx context.Context, id string, r *http.Request) (*store.Record, error) {
		return h.svc.Pay(ctx, id)
	})
}

// Reset handles POST /checkout/session/reset.
func (h *SessionHandlers) Reset() http.HandlerFunc {
	return h.withSession(func(ctx context.Context, id string, r *http.Request) (*store.Record, error) {
		return h.svc.Reset(ctx, id)
	})
}

// Transactions handles GET /checkout/session/transactions.
func (h *SessionHandlers) Transactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.SessionIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing session")
			return
		}
		items, err := h.svc.Transactions(r.Context(), id)
		if err != nil {
			writeServiceError(w, h.logger, err, nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"transactions": service.NewTransactionViews(items),
		})
	}
}

// Feed handles GET /checkout/session/feed, a websocket of session snapshots.
func (h *SessionHandlers) Feed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.SessionIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing session")
			return
		}
		if h.feed == nil {
			writeError(w, http.StatusNotFound, "live feed disabled")
			return
		}
		rec, err := h.svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, h.logger, err, nil)
			return
		}
		h.feed.Serve(w, r, id, service.NewSessionView(rec))
	}
}

type sessionAction func(ctx context.Context, id string, r *http.Request) (*store.Record, error)

// withSession resolves the session id, runs action and writes the resulting view.
// A failed settlement still returns the session so the client can show it.
func (h *SessionHandlers) withSession(action sessionAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.SessionIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing session")
			return
		}
		rec, err := action(r.Context(), id, r)
		if err != nil {
			var view interface{}
			if rec != nil {
				view = service.NewSessionView(rec)
			}
			writeServiceError(w, h.logger, err, view)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, service.NewSessionView(rec))
	}
}
