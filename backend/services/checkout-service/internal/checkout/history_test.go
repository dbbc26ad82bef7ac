package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterpay/backend/libs/billing"
)

func TestHistoryMostRecentFirst(t *testing.T) {
	var h History
	assert.Empty(t, h.List())

	first := h.RecordLocal(BillRecord{BillID: 1, PlanName: "Basic Plan", UnitsUsed: 150, TotalCost: decimal.NewFromInt(750)}, billing.PaymentMethodUPI)
	second := h.RecordLocal(BillRecord{BillID: 2, PlanName: "Standard Plan", UnitsUsed: 50, TotalCost: decimal.NewFromInt(350)}, billing.PaymentMethodCard)

	assert.Equal(t, "TXN-000001", first.ID)
	assert.Equal(t, "TXN-000002", second.ID)

	list := h.List()
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].BillID)
	assert.Equal(t, "350", list[0].TotalCost.String())
	assert.Equal(t, billing.PaymentMethodCard, list[0].PaymentMethod)
	assert.Equal(t, int64(1), list[1].BillID)
	assert.Equal(t, "750", list[1].TotalCost.String())
}

func TestHistoryListIsCopy(t *testing.T) {
	var h History
	h.RecordLocal(BillRecord{BillID: 1}, billing.PaymentMethodUPI)

	list := h.List()
	list[0].ID = "mutated"
	assert.Equal(t, "TXN-000001", h.List()[0].ID)
}

func TestHistoryFallsBackToRecordMethod(t *testing.T) {
	var h History
	s := h.RecordLocal(BillRecord{BillID: 1, PaymentMethod: billing.PaymentMethodCard}, "")
	assert.Equal(t, billing.PaymentMethodCard, s.PaymentMethod)
}

func TestHistoryIDsAreUniqueAfterMany(t *testing.T) {
	var h History
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s := h.RecordLocal(BillRecord{BillID: int64(i)}, billing.PaymentMethodUPI)
		assert.False(t, seen[s.ID], s.ID)
		seen[s.ID] = true
	}
	assert.Len(t, h.List(), 50)
}
