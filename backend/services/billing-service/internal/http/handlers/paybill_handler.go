package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"meterpay/backend/libs/billing"
	"meterpay/backend/libs/httpx"
	"meterpay/backend/libs/plan"
	"meterpay/backend/services/billing-service/internal/models"
	"meterpay/backend/services/billing-service/internal/service"
)

// Settler settles one bill.
type Settler interface {
	Settle(ctx context.Context, in service.SettleInput) (*models.BillRecord, error)
}

type payBillRequest struct {
	ConsumerID    string `json:"consumerId" validate:"required"`
	ConsumerName  string `json:"consumerName" validate:"required"`
	PlanName      string `json:"planName" validate:"required"`
	UnitsUsed     *int64 `json:"unitsUsed" validate:"required,gte=0,lte=1000000000"`
	PaymentMethod string `json:"paymentMethod" validate:"required,payment_method"`
}

func (r *payBillRequest) normalize() {
	r.ConsumerID = strings.TrimSpace(r.ConsumerID)
	r.ConsumerName = strings.TrimSpace(r.ConsumerName)
	r.PlanName = strings.TrimSpace(r.PlanName)
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)
}

type billData struct {
	ID             int64                 `json:"id"`
	ConsumerID     string                `json:"consumerId"`
	ConsumerName   string                `json:"consumerName"`
	PlanName       string                `json:"planName"`
	UnitsUsed      int64                 `json:"unitsUsed"`
	TotalCost      json.Number           `json:"totalCost"`
	RemainingUnits int64                 `json:"remainingUnits"`
	PaymentStatus  billing.PaymentStatus `json:"paymentStatus"`
	PaymentMethod  billing.PaymentMethod `json:"paymentMethod"`
	SettledAt      time.Time             `json:"settledAt"`
}

func newBillData(rec *models.BillRecord) billData {
	return billData{
		ID:             rec.ID,
		ConsumerID:     rec.ConsumerID,
		ConsumerName:   rec.ConsumerName,
		PlanName:       rec.PlanName,
		UnitsUsed:      rec.UnitsUsed,
		TotalCost:      json.Number(rec.TotalCost.String()),
		RemainingUnits: rec.RemainingUnits,
		PaymentStatus:  rec.PaymentStatus,
		PaymentMethod:  rec.PaymentMethod,
		SettledAt:      rec.SettledAt,
	}
}

// PlanLookup resolves plan names.
type PlanLookup interface {
	Lookup(name string) (plan.Plan, error)
}

// PayBillHandler serves POST /api/paybill.
type PayBillHandler struct {
	settler  Settler
	plans    PlanLookup
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPayBillHandler builds handler.
func NewPayBillHandler(settler Settler, plans PlanLookup, logger *zap.Logger) *PayBillHandler {
	return &PayBillHandler{
		settler:  settler,
		plans:    plans,
		validate: newValidator(),
		logger:   logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		_, ok := billing.ParsePaymentMethod(fl.Field().String())
		return ok
	})
	return v
}

// ServeHTTP decodes, validates and settles the bill. An unknown plan is reported before
// any field error.
func (h *PayBillHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req payBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if _, err := h.plans.Lookup(req.PlanName); errors.Is(err, plan.ErrPlanNotFound) {
		writeFailure(w, http.StatusNotFound, msgPlanNotFound)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	method, _ := billing.ParsePaymentMethod(req.PaymentMethod)
	rec, err := h.settler.Settle(r.Context(), service.SettleInput{
		ConsumerID:    req.ConsumerID,
		ConsumerName:  req.ConsumerName,
		PlanName:      req.PlanName,
		UnitsUsed:     *req.UnitsUsed,
		PaymentMethod: method,
	})
	switch {
	case errors.Is(err, plan.ErrPlanNotFound):
		writeFailure(w, http.StatusNotFound, msgPlanNotFound)
		return
	case err != nil:
		h.logger.Error("settlement failed",
			zap.String("consumer_id", req.ConsumerID),
			zap.String("plan", req.PlanName),
			zap.Error(err),
		)
		writeFailure(w, http.StatusInternalServerError, msgServerError)
		return
	}

	writeSuccess(w, msgBillPaid, newBillData(rec))
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must not be negative", fe.Field())
	case "lte":
		return fmt.Sprintf("%s must not exceed %d", fe.Field(), billing.MaxUnitsUsed)
	case "payment_method":
		return fmt.Sprintf("%s must be one of Card, UPI, Net Banking", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
