package billing

import "strings"

// PaymentMethod is one of the fixed payment options offered at review.
type PaymentMethod string

// Supported payment methods.
const (
	PaymentMethodCard       PaymentMethod = "Card"
	PaymentMethodUPI        PaymentMethod = "UPI"
	PaymentMethodNetBanking PaymentMethod = "Net Banking"
)

// PaymentMethods lists the options in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMethodCard, PaymentMethodUPI, PaymentMethodNetBanking}
}

// ParsePaymentMethod matches s case-insensitively against the supported methods.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	s = strings.TrimSpace(s)
	for _, m := range PaymentMethods() {
		if strings.EqualFold(string(m), s) {
			return m, true
		}
	}
	return "", false
}

// PaymentStatus is the settlement state stored on a bill record.
type PaymentStatus string

// Payment statuses. Settlement only ever writes Success.
const (
	PaymentStatusSuccess PaymentStatus = "Success"
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusFailed  PaymentStatus = "Failed"
)
