package httpserver

import (
	"net/http"

	"meterpay/backend/libs/httpx"
)

// Routes groups HTTP handlers. Session routes are wrapped by SessionAuth.
type Routes struct {
	CreateSession       http.Handler
	Plans               http.Handler
	Session             http.Handler
	SelectPlan          http.Handler
	SubmitDetails       http.Handler
	Back                http.Handler
	ChoosePaymentMethod http.Handler
	Pay                 http.Handler
	Reset               http.Handler
	Transactions        http.Handler
	Feed                http.Handler
	Health              http.Handler
	Metrics             http.Handler

	SessionAuth func(http.Handler) http.Handler
}

// NewRouter registers service endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	auth := routes.SessionAuth
	if auth == nil {
		auth = func(h http.Handler) http.Handler { return h }
	}

	public := []struct {
		pattern string
		method  string
		handler http.Handler
	}{
		{"/checkout/sessions", http.MethodPost, routes.CreateSession},
		{"/checkout/plans", http.MethodGet, routes.Plans},
		{"/health", http.MethodGet, routes.Health},
		{"/metrics", http.MethodGet, routes.Metrics},
	}
	for _, rt := range public {
		if rt.handler != nil {
			mux.Handle(rt.pattern, httpx.Method(rt.method, rt.handler))
		}
	}

	session := []struct {
		pattern string
		method  string
		handler http.Handler
	}{
		{"/checkout/session", http.MethodGet, routes.Session},
		{"/checkout/session/plan", http.MethodPost, routes.SelectPlan},
		{"/checkout/session/details", http.MethodPost, routes.SubmitDetails},
		{"/checkout/session/back", http.MethodPost, routes.Back},
		{"/checkout/session/payment-method", http.MethodPost, routes.ChoosePaymentMethod},
		{"/checkout/session/pay", http.MethodPost, routes.Pay},
		{"/checkout/session/reset", http.MethodPost, routes.Reset},
		{"/checkout/session/transactions", http.MethodGet, routes.Transactions},
		{"/checkout/session/feed", http.MethodGet, routes.Feed},
	}
	for _, rt := range session {
		if rt.handler != nil {
			mux.Handle(rt.pattern, httpx.Method(rt.method, auth(rt.handler)))
		}
	}
	return mux
}
