package handlers

import (
	"net/http"

	"meterpay/backend/libs/billing"
	"meterpay/backend/libs/httpx"
	"meterpay/backend/libs/plan"
)

// NewPlansHandler returns GET /checkout/plans handler. Inactive plans are listed so the
// UI can show them disabled.
func NewPlansHandler(catalog *plan.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"plans":          catalog.Plans(),
			"paymentMethods": billing.PaymentMethods(),
		})
	}
}
