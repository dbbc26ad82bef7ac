package checkout

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"meterpay/backend/libs/billing"
)

// TransactionSummary is the display projection of a settled bill kept for the session.
type TransactionSummary struct {
	ID             string                `json:"id"`
	BillID         int64                 `json:"billId"`
	ConsumerID     string                `json:"consumerId"`
	ConsumerName   string                `json:"consumerName"`
	PlanName       string                `json:"planName"`
	UnitsUsed      int64                 `json:"unitsUsed"`
	TotalCost      decimal.Decimal       `json:"totalCost"`
	RemainingUnits int64                 `json:"remainingUnits"`
	PaymentStatus  billing.PaymentStatus `json:"paymentStatus"`
	PaymentMethod  billing.PaymentMethod `json:"paymentMethod"`
	RecordedAt     time.Time             `json:"recordedAt"`
}

// History lists the bills settled during one session, newest first. It survives Reset
// and is dropped together with the session.
type History struct {
	Seq   int64                `json:"seq"`
	Items []TransactionSummary `json:"items"`
}

// RecordLocal prepends a summary of rec. Display ids come from a counter owned by the
// history so they never collide within a session.
func (h *History) RecordLocal(rec BillRecord, method billing.PaymentMethod) TransactionSummary {
	h.Seq++
	if method == "" {
		method = rec.PaymentMethod
	}
	summary := TransactionSummary{
		ID:             fmt.Sprintf("TXN-%06d", h.Seq),
		BillID:         rec.BillID,
		ConsumerID:     rec.ConsumerID,
		ConsumerName:   rec.ConsumerName,
		PlanName:       rec.PlanName,
		UnitsUsed:      rec.UnitsUsed,
		TotalCost:      rec.TotalCost,
		RemainingUnits: rec.RemainingUnits,
		PaymentStatus:  rec.PaymentStatus,
		PaymentMethod:  method,
		RecordedAt:     time.Now().UTC(),
	}
	h.Items = append([]TransactionSummary{summary}, h.Items...)
	return summary
}

// List returns a copy of the summaries, most recent first.
func (h *History) List() []TransactionSummary {
	out := make([]TransactionSummary, len(h.Items))
	copy(out, h.Items)
	return out
}
