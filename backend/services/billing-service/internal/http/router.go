package httpserver

import (
	"net/http"

	"meterpay/backend/libs/httpx"
)

// Routes groups HTTP handlers.
type Routes struct {
	PayBill http.Handler
	Plans   http.Handler
	Health  http.Handler
	Metrics http.Handler
}

// NewRouter registers service endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.PayBill != nil {
		mux.Handle("/api/paybill", httpx.Method(http.MethodPost, routes.PayBill))
	}
	if routes.Plans != nil {
		mux.Handle("/api/plans", httpx.Method(http.MethodGet, routes.Plans))
	}
	if routes.Health != nil {
		mux.Handle("/health", httpx.Method(http.MethodGet, routes.Health))
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", httpx.Method(http.MethodGet, routes.Metrics))
	}
	return mux
}
