package models

import (
	"time"

	"github.com/shopspring/decimal"

	"meterpay/backend/libs/billing"
)

// BillRecord is one settled bill. Rows are appended once and never updated.
type BillRecord struct {
	ID             int64                 `db:"id" json:"id"`
	ConsumerID     string                `db:"consumer_id" json:"consumerId"`
	ConsumerName   string                `db:"consumer_name" json:"consumerName"`
	PlanName       string                `db:"plan_name" json:"planName"`
	UnitsUsed      int64                 `db:"units_used" json:"unitsUsed"`
	TotalCost      decimal.Decimal       `db:"total_cost" json:"totalCost"`
	RemainingUnits int64                 `db:"remaining_units" json:"remainingUnits"`
	PaymentStatus  billing.PaymentStatus `db:"payment_status" json:"paymentStatus"`
	PaymentMethod  billing.PaymentMethod `db:"payment_method" json:"paymentMethod"`
	SettledAt      time.Time             `db:"settled_at" json:"settledAt"`
}
