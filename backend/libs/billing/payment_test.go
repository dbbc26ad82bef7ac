package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePaymentMethod(t *testing.T) {
	m, ok := ParsePaymentMethod(" net banking ")
	assert.True(t, ok)
	assert.Equal(t, PaymentMethodNetBanking, m)

	m, ok = ParsePaymentMethod("UPI")
	assert.True(t, ok)
	assert.Equal(t, PaymentMethodUPI, m)

	_, ok = ParsePaymentMethod("Cash")
	assert.False(t, ok)

	_, ok = ParsePaymentMethod("")
	assert.False(t, ok)
}
