package handlers

import (
	"net/http"

	"meterpay/backend/libs/httpx"
	"meterpay/backend/libs/plan"
)

// NewPlansHandler returns GET /api/plans handler listing the whole catalog.
func NewPlansHandler(catalog *plan.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"plans": catalog.Plans(),
		})
	}
}
