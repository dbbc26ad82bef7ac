package service

import (
	"encoding/json"
	"time"

	"meterpay/backend/libs/billing"
	"meterpay/backend/libs/plan"
	"meterpay/backend/services/checkout-service/internal/checkout"
	"meterpay/backend/services/checkout-service/internal/store"
)

// SessionView is the wire form of a session, used by the HTTP API and the live feed.
type SessionView struct {
	SessionID      string                `json:"sessionId"`
	Stage          checkout.Stage        `json:"stage"`
	SelectedPlan   *plan.Plan            `json:"selectedPlan"`
	ConsumerID     string                `json:"consumerId"`
	ConsumerName   string                `json:"consumerName"`
	UnitsUsed      int64                 `json:"unitsUsed"`
	PaymentMethod  billing.PaymentMethod `json:"paymentMethod,omitempty"`
	EstimatedCost  *json.Number          `json:"estimatedCost,omitempty"`
	RemainingUnits *int64                `json:"remainingUnits,omitempty"`
	Receipt        *ReceiptView          `json:"receipt,omitempty"`
	LastError      string                `json:"lastError,omitempty"`
	Transactions   int                   `json:"transactions"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// ReceiptView is a settled bill as shown on the receipt.
type ReceiptView struct {
	BillID         int64                 `json:"billId"`
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

// TransactionView is one row of the session transaction list.
type TransactionView struct {
	ID             string                `json:"id"`
	BillID         int64                 `json:"billId"`
	ConsumerID     string                `json:"consumerId"`
	ConsumerName   string                `json:"consumerName"`
	PlanName       string                `json:"planName"`
	UnitsUsed      int64                 `json:"unitsUsed"`
	TotalCost      json.Number           `json:"totalCost"`
	RemainingUnits int64                 `json:"remainingUnits"`
	PaymentStatus  billing.PaymentStatus `json:"paymentStatus"`
	PaymentMethod  billing.PaymentMethod `json:"paymentMethod"`
	RecordedAt     time.Time             `json:"recordedAt"`
}

// NewSessionView projects rec.
func NewSessionView(rec *store.Record) SessionView {
	s := rec.Session
	view := SessionView{
		SessionID:     rec.ID,
		Stage:         s.Stage,
		SelectedPlan:  s.SelectedPlan,
		ConsumerID:    s.ConsumerID,
		ConsumerName:  s.ConsumerName,
		UnitsUsed:     s.UnitsUsed,
		PaymentMethod: s.PaymentMethod,
		LastError:     s.LastError,
		Transactions:  len(rec.History.Items),
		UpdatedAt:     rec.UpdatedAt,
	}
	if s.Preview != nil {
		cost := json.Number(s.Preview.TotalCost.String())
		remaining := s.Preview.RemainingUnits
		view.EstimatedCost = &cost
		view.RemainingUnits = &remaining
	}
	if r := s.Receipt; r != nil {
		view.Receipt = &ReceiptView{
			BillID:         r.BillID,
			ConsumerID:     r.ConsumerID,
			ConsumerName:   r.ConsumerName,
			PlanName:       r.PlanName,
			UnitsUsed:      r.UnitsUsed,
			TotalCost:      json.Number(r.TotalCost.String()),
			RemainingUnits: r.RemainingUnits,
			PaymentStatus:  r.PaymentStatus,
			PaymentMethod:  r.PaymentMethod,
			SettledAt:      r.SettledAt,
		}
	}
	return view
}

// NewTransactionViews projects the history, most recent first.
func NewTransactionViews(items []checkout.TransactionSummary) []TransactionView {
	out := make([]TransactionView, 0, len(items))
	for _, it := range items {
		out = append(out, TransactionView{
			ID:             it.ID,
			BillID:         it.BillID,
			ConsumerID:     it.ConsumerID,
			ConsumerName:   it.ConsumerName,
			PlanName:       it.PlanName,
			UnitsUsed:      it.UnitsUsed,
			TotalCost:      json.Number(it.TotalCost.String()),
			RemainingUnits: it.RemainingUnits,
			PaymentStatus:  it.PaymentStatus,
			PaymentMethod:  it.PaymentMethod,
			RecordedAt:     it.RecordedAt,
		})
	}
	return out
}
