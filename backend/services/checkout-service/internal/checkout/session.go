// Package checkout implements the four-stage checkout workflow and the per-session
// transaction history. It does no I/O: callers load a Session, apply one action and
// persist the result.
package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"meterpay/backend/libs/billing"
	"meterpay/backend/libs/plan"
)

// Stage is a step of the workflow.
type Stage string

// Stages in workflow order.
const (
	StagePlanSelection Stage = "PlanSelection"
	StageDetailsEntry  Stage = "DetailsEntry"
	StageReviewAndPay  Stage = "ReviewAndPay"
	StageReceipt       Stage = "Receipt"
)

// Preview is the locally computed estimate shown at review.
type Preview struct {
	TotalCost      decimal.Decimal `json:"totalCost"`
	RemainingUnits int64           `json:"remainingUnits"`
}

// BillRecord is a settled bill as returned by the ledger.
type BillRecord struct {
	BillID         int64                 `json:"billId"`
	ConsumerID     string                `json:"consumerId"`
	ConsumerName   string                `json:"consumerName"`
	PlanName       string                `json:"planName"`
	UnitsUsed      int64                 `json:"unitsUsed"`
	TotalCost      decimal.Decimal       `json:"totalCost"`
	RemainingUnits int64                 `json:"remainingUnits"`
	PaymentStatus  billing.PaymentStatus `json:"paymentStatus"`
	PaymentMethod  billing.PaymentMethod `json:"paymentMethod"`
	SettledAt      time.Time             `json:"settledAt"`
}

// SettlementRequest carries the identifying fields sent to the ledger. Amounts are
// never sent; the ledger recomputes them.
type SettlementRequest struct {
	ConsumerID    string
	ConsumerName  string
	PlanName      string
	UnitsUsed     int64
	PaymentMethod billing.PaymentMethod
}

// Details is the consumer input submitted at DetailsEntry.
type Details struct {
	ConsumerID   string `json:"consumerId" validate:"required"`
	ConsumerName string `json:"consumerName" validate:"required"`
	UnitsUsed    int64  `json:"unitsUsed" validate:"gt=0,lte=1000000000"`
}

var detailsValidator = newDetailsValidator()

func newDetailsValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// Session is the state of one checkout. The zero value is not valid; use NewSession.
// Every action either succeeds and moves the session or fails and leaves it untouched.
type Session struct {
	Stage         Stage                 `json:"stage"`
	SelectedPlan  *plan.Plan            `json:"selectedPlan,omitempty"`
	ConsumerID    string                `json:"consumerId"`
	ConsumerName  string                `json:"consumerName"`
	UnitsUsed     int64                 `json:"unitsUsed"`
	PaymentMethod billing.PaymentMethod `json:"paymentMethod,omitempty"`
	Preview       *Preview              `json:"preview,omitempty"`
	Receipt       *BillRecord           `json:"receipt,omitempty"`
	LastError     string                `json:"lastError,omitempty"`
}

// NewSession returns a session at PlanSelection with nothing filled in.
func NewSession() Session {
	return Session{Stage: StagePlanSelection}
}

// SelectPlan picks an active plan and moves to DetailsEntry.
func (s *Session) SelectPlan(p plan.Plan) error {
	if s.Stage != StagePlanSelection {
		return illegal("select plan", s.Stage)
	}
	if !p.IsActive() {
		return invalid("planName", "plan is not active")
	}
	s.SelectedPlan = &p
	s.Stage = StageDetailsEntry
	return nil
}

// SubmitDetails stores the consumer fields, computes the preview and moves to ReviewAndPay.
func (s *Session) SubmitDetails(d Details) error {
	if s.Stage != StageDetailsEntry {
		return illegal("submit details", s.Stage)
	}
	d.ConsumerID = strings.TrimSpace(d.ConsumerID)
	d.ConsumerName = strings.TrimSpace(d.ConsumerName)
	if err := validateDetails(d); err != nil {
		return err
	}
	if s.SelectedPlan == nil {
		return illegal("submit details", s.Stage)
	}

	bill, err := billing.Compute(*s.SelectedPlan, d.UnitsUsed)
	if err != nil {
		return invalid("unitsUsed", err.Error())
	}

	s.ConsumerID = d.ConsumerID
	s.ConsumerName = d.ConsumerName
	s.UnitsUsed = d.UnitsUsed
	s.Preview = &Preview{TotalCost: bill.TotalCost, RemainingUnits: bill.RemainingUnits}
	s.Stage = StageReviewAndPay
	return nil
}

func validateDetails(d Details) error {
	err := detailsValidator.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return invalid(fe.Field(), fe.Field()+" is required")
	}
	if fe.Tag() == "lte" {
		return invalid(fe.Field(), fmt.Sprintf("%s must not exceed %d", fe.Field(), billing.MaxUnitsUsed))
	}
	return invalid(fe.Field(), fe.Field()+" must be a positive integer")
}

// Back returns to the previous stage. Leaving DetailsEntry drops the plan;
// leaving ReviewAndPay keeps the consumer fields.
func (s *Session) Back() error {
	switch s.Stage {
	case StageDetailsEntry:
		s.SelectedPlan = nil
		s.Preview = nil
		s.Stage = StagePlanSelection
	case StageReviewAndPay:
		s.Preview = nil
		s.LastError = ""
		s.Stage = StageDetailsEntry
	default:
		return illegal("back", s.Stage)
	}
	return nil
}

// ChoosePaymentMethod records the payment method picked at review.
func (s *Session) ChoosePaymentMethod(raw string) error {
	if s.Stage != StageReviewAndPay {
		return illegal("choose payment method", s.Stage)
	}
	m, ok := billing.ParsePaymentMethod(raw)
	if !ok {
		return invalid("paymentMethod", "unsupported payment method")
	}
	s.PaymentMethod = m
	return nil
}

// BeginSettlement checks the session is ready to pay and returns the ledger request.
// The session itself is not changed.
func (s *Session) BeginSettlement() (SettlementRequest, error) {
	if s.Stage != StageReviewAndPay {
		return SettlementRequest{}, illegal("pay", s.Stage)
	}
	if s.PaymentMethod == "" {
		return SettlementRequest{}, invalid("paymentMethod", "select a payment method")
	}
	if s.SelectedPlan == nil {
		return SettlementRequest{}, illegal("pay", s.Stage)
	}
	return SettlementRequest{
		ConsumerID:    s.ConsumerID,
		ConsumerName:  s.ConsumerName,
		PlanName:      s.SelectedPlan.Name,
		UnitsUsed:     s.UnitsUsed,
		PaymentMethod: s.PaymentMethod,
	}, nil
}

// CompleteSettlement stores the settled record and moves to Receipt.
func (s *Session) CompleteSettlement(rec BillRecord) error {
	if s.Stage != StageReviewAndPay {
		return illegal("complete settlement", s.Stage)
	}
	s.Receipt = &rec
	s.LastError = ""
	s.Stage = StageReceipt
	return nil
}

// FailSettlement keeps the session at ReviewAndPay with every field intact and
// remembers message for display. The user may retry.
func (s *Session) FailSettlement(message string) error {
	if s.Stage != StageReviewAndPay {
		return illegal("fail settlement", s.Stage)
	}
	s.LastError = message
	return nil
}

// Reset starts a new checkout once a receipt was shown.
func (s *Session) Reset() error {
	if s.Stage != StageReceipt {
		return illegal("reset", s.Stage)
	}
	*s = NewSession()
	return nil
}
