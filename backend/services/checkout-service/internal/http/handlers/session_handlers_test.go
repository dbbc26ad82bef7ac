package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meterpay/backend/libs/billing"
	"meterpay/backend/libs/plan"
	"meterpay/backend/services/checkout-service/internal/checkout"
	"meterpay/backend/services/checkout-service/internal/feed"
	httpserver "meterpay/backend/services/checkout-service/internal/http"
	"meterpay/backend/services/checkout-service/internal/http/middleware"
	"meterpay/backend/services/checkout-service/internal/service"
	"meterpay/backend/services/checkout-service/internal/store"
	"meterpay/backend/services/checkout-service/internal/token"
)

type stubLedger struct {
	engine *billing.Engine
	err    error
	nextID int64
}

func (l *stubLedger) Settle(ctx context.Context, req checkout.SettlementRequest) (checkout.BillRecord, error) {
	if l.err != nil {
		return checkout.BillRecord{}, l.err
	}
	_, bill, err := l.engine.ComputeFor(req.PlanName, req.UnitsUsed)
	if err != nil {
		return checkout.BillRecord{}, err
	}
	l.nextID++
	return checkout.BillRecord{
		BillID:         l.nextID,
		ConsumerID:     req.ConsumerID,
		ConsumerName:   req.ConsumerName,
		PlanName:       req.PlanName,
		UnitsUsed:      req.UnitsUsed,
		TotalCost:      bill.TotalCost,
		RemainingUnits: bill.RemainingUnits,
		PaymentStatus:  billing.PaymentStatusSuccess,
		PaymentMethod:  req.PaymentMethod,
		SettledAt:      time.Now().UTC(),
	}, nil
}

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	ledger *stubLedger
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	catalog, err := plan.NewCatalog([]plan.Plan{
		{Name: "Basic Plan", PricePerUnit: decimal.NewFromInt(5), UnitsIncluded: 100, ValidityDays: 30, Status: plan.StatusActive},
		{Name: "Standard Plan", PricePerUnit: decimal.NewFromInt(7), UnitsIncluded: 200, ValidityDays: 30, Status: plan.StatusActive},
		{Name: "Legacy Plan", PricePerUnit: decimal.NewFromInt(3), UnitsIncluded: 10, ValidityDays: 30, Status: plan.StatusInactive},
	})
	require.NoError(t, err)

	ledger := &stubLedger{engine: billing.NewEngine(catalog)}
	hub := feed.NewHub(nil, zap.NewNop())
	feedServer := feed.NewServer(hub, time.Second, time.Minute, zap.NewNop())
	t.Cleanup(feedServer.Close)

	svc := service.NewCheckoutService(catalog, store.NewMemoryStore(time.Hour), ledger, zap.NewNop(), service.Options{Notifier: hub})
	tokens := token.NewService("test-secret", time.Hour)
	h := NewSessionHandlers(svc, tokens, feedServer, zap.NewNop())

	router := httpserver.NewRouter(httpserver.Routes{
		CreateSession:       h.Create(),
		Plans:               NewPlansHandler(catalog),
		Session:             h.Get(),
		SelectPlan:          h.SelectPlan(),
		SubmitDetails:       h.SubmitDetails(),
		Back:                h.Back(),
		ChoosePaymentMethod: h.ChoosePaymentMethod(),
		Pay:                 h.Pay(),
		Reset:               h.Reset(),
		Transactions:        h.Transactions(),
		Feed:                h.Feed(),
		SessionAuth:         middleware.SessionAuth(tokens),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	api := &testAPI{t: t, server: srv, ledger: ledger}
	var created struct {
		SessionID string                 `json:"sessionId"`
		Token     string                 `json:"token"`
		Session   map[string]interface{} `json:"session"`
	}
	status := api.do(http.MethodPost, "/checkout/sessions", "", &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.Token)
	assert.Equal(t, "PlanSelection", created.Session["stage"])
	api.token = created.Token
	return api
}

func (a *testAPI) do(method, path, body string, out interface{}) int {
	a.t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	require.NoError(a.t, err)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type sessionBody struct {
	Stage          string  `json:"stage"`
	ConsumerID     string  `json:"consumerId"`
	UnitsUsed      int64   `json:"unitsUsed"`
	PaymentMethod  string  `json:"paymentMethod"`
	EstimatedCost  float64 `json:"estimatedCost"`
	RemainingUnits int64   `json:"remainingUnits"`
	LastError      string  `json:"lastError"`
	Receipt        *struct {
		TotalCost     float64 `json:"totalCost"`
		PaymentStatus string  `json:"paymentStatus"`
	} `json:"receipt"`
}

type errorBody struct {
	Error   string       `json:"error"`
	Field   string       `json:"field"`
	Session *sessionBody `json:"session"`
}

func (a *testAPI) checkoutOnce(planName, units, method string) sessionBody {
	a.t.Helper()
	var s sessionBody
	require.Equal(a.t, http.StatusOK, a.do(http.MethodPost, "/checkout/session/plan", `{"planName":"`+planName+`"}`, &s))
	require.Equal(a.t, http.StatusOK, a.do(http.MethodPost, "/checkout/session/details", `{"consumerId":"CUST-101","consumerName":"John Doe","unitsUsed":`+units+`}`, &s))
	require.Equal(a.t, http.StatusOK, a.do(http.MethodPost, "/checkout/session/payment-method", `{"paymentMethod":"`+method+`"}`, &s))
	require.Equal(a.t, http.StatusOK, a.do(http.MethodPost, "/checkout/session/pay", "", &s))
	return s
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	receipt := api.checkoutOnce("Basic Plan", "150", "UPI")
	assert.Equal(t, "Receipt", receipt.Stage)
	require.NotNil(t, receipt.Receipt)
	assert.Equal(t, 750.0, receipt.Receipt.TotalCost)
	assert.Equal(t, "Success", receipt.Receipt.PaymentStatus)

	var s sessionBody
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/checkout/session/reset", "", &s))
	assert.Equal(t, "PlanSelection", s.Stage)

	api.checkoutOnce("Standard Plan", `"50"`, "Card")

	var txns struct {
		Transactions []struct {
			ID        string  `json:"id"`
			PlanName  string  `json:"planName"`
			TotalCost float64 `json:"totalCost"`
		} `json:"transactions"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/checkout/session/transactions", "", &txns))
	require.Len(t, txns.Transactions, 2)
	assert.Equal(t, "Standard Plan", txns.Transactions[0].PlanName)
	assert.Equal(t, 350.0, txns.Transactions[0].TotalCost)
	assert.Equal(t, "TXN-000002", txns.Transactions[0].ID)
	assert.Equal(t, 750.0, txns.Transactions[1].TotalCost)
}

func TestPreviewIsShownAtReview(t *testing.T) {
	api := newTestAPI(t)
	var s sessionBody
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/checkout/session/plan", `{"planName":"Standard Plan"}`, &s))
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/checkout/session/details", `{"consumerId":"C","consumerName":"N","unitsUsed":50}`, &s))

	assert.Equal(t, "ReviewAndPay", s.Stage)
	assert.Equal(t, 350.0, s.EstimatedCost)
	assert.Equal(t, int64(150), s.RemainingUnits)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	var e errorBody

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/checkout/session/plan", `{"planName":"Nonexistent Plan"}`, &e))
	assert.Equal(t, "Plan not found", e.Error)

	e = errorBody{}
	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, "/checkout/session/plan", `{"planName":"Legacy Plan"}`, &e))
	assert.Equal(t, "planName", e.Field)

	e = errorBody{}
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/checkout/session/pay", "", &e))

	var s sessionBody
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/checkout/session/plan", `{"planName":"Basic Plan"}`, &s))

	for _, units := range []string{`0`, `-5`, `1.5`, `"abc"`, `null`, `""`} {
		e = errorBody{}
		status := api.do(http.MethodPost, "/checkout/session/details", `{"consumerId":"C","consumerName":"N","unitsUsed":`+units+`}`, &e)
		assert.Equal(t, http.StatusUnprocessableEntity, status, units)
		assert.Equal(t, "unitsUsed", e.Field, units)
	}

	e = errorBody{}
	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, "/checkout/session/details", `{"consumerId":"","consumerName":"N","unitsUsed":3}`, &e))
	assert.Equal(t, "consumerId", e.Field)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/checkout/session", "", &s))
	assert.Equal(t, "DetailsEntry", s.Stage)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/checkout/session/details", `{"consumerId":"C","consumerName":"N","unitsUsed":3}`, &s))
	e = errorBody{}
	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, "/checkout/session/pay", "", &e))
	assert.Equal(t, "paymentMethod", e.Field)
	assert.Equal(t, "select a payment method", e.Error)
}

func TestSettlementFailureReturns502WithSession(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.err = errors.New("upstream down")

	var s sessionBody
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/checkout/session/plan", `{"planName":"Basic Plan"}`, &s))
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/checkout/session/details", `{"consumerId":"C","consumerName":"N","unitsUsed":3}`, &s))
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/checkout/session/payment-method", `{"paymentMethod":"Card"}`, &s))

	var e errorBody
	assert.Equal(t, http.StatusBadGateway, api.do(http.MethodPost, "/checkout/session/pay", "", &e))
	require.NotNil(t, e.Session)
	assert.Equal(t, "ReviewAndPay", e.Session.Stage)
	assert.Equal(t, "C", e.Session.ConsumerID)
	assert.NotEmpty(t, e.Session.LastError)
}

func TestSessionRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	api.token = ""

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/checkout/session", "", nil))

	var plans struct {
		Plans          []plan.Plan `json:"plans"`
		PaymentMethods []string    `json:"paymentMethods"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/checkout/plans", "", &plans))
	assert.Len(t, plans.Plans, 3)
	assert.Equal(t, []string{"Card", "UPI", "Net Banking"}, plans.PaymentMethods)
}

func TestExpiredSessionIsNotFound(t *testing.T) {
	api := newTestAPI(t)
	tok, err := token.NewService("test-secret", time.Hour).Issue("gone")
	require.NoError(t, err)
	api.token = tok

	var e errorBody
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/checkout/session/back", "", &e))
	assert.Equal(t, "session not found", e.Error)
}

func TestFeedStreamsChanges(t *testing.T) {
	api := newTestAPI(t)

	url := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/checkout/session/feed?token=" + api.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() sessionBody {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var s sessionBody
		require.NoError(t, conn.ReadJSON(&s))
		return s
	}
	assert.Equal(t, "PlanSelection", read().Stage)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/checkout/session/plan", `{"planName":"Basic Plan"}`, nil))
	assert.Equal(t, "DetailsEntry", read().Stage)
}

func TestParseUnits(t *testing.T) {
	units, err := parseUnits(json.RawMessage(`42`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), units)

	units, err = parseUnits(json.RawMessage(`" 7 "`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), units)

	_, err = parseUnits(nil)
	var verr *checkout.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "unitsUsed is required", verr.Message)
}
