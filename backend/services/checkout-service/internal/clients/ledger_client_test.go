package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterpay/backend/libs/billing"
	"meterpay/backend/libs/plan"
	"meterpay/backend/services/checkout-service/internal/checkout"
)

func settlementRequest() checkout.SettlementRequest {
	return checkout.SettlementRequest{
		ConsumerID:    "CUST-101",
		ConsumerName:  "John Doe",
		PlanName:      "Basic Plan",
		UnitsUsed:     150,
		PaymentMethod: billing.PaymentMethodNetBanking,
	}
}

func TestLedgerClientSettle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/paybill", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Net Banking", body["paymentMethod"])
		assert.Equal(t, 150.0, body["unitsUsed"])
		assert.NotContains(t, body, "totalCost")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Bill paid successfully","data":{
			"id":12,"consumerId":"CUST-101","consumerName":"John Doe","planName":"Basic Plan","unitsUsed":150,
			"totalCost":750,"remainingUnits":0,"paymentStatus":"Success","paymentMethod":"Net Banking",
			"settledAt":"2026-10-18T10:00:00Z"}}`))
	}))
	defer srv.Close()

	client := NewLedgerClient(srv.URL+"/", NewDefaultHTTPClient(time.Second))
	rec, err := client.Settle(context.Background(), settlementRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(12), rec.BillID)
	assert.Equal(t, "750", rec.TotalCost.String())
	assert.Equal(t, billing.PaymentStatusSuccess, rec.PaymentStatus)
	assert.Equal(t, billing.PaymentMethodNetBanking, rec.PaymentMethod)
	assert.Equal(t, 2026, rec.SettledAt.Year())
}

func TestLedgerClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "plan not found", status: http.StatusNotFound, body: `{"success":false,"message":"Plan not found"}`, wantErr: plan.ErrPlanNotFound},
		{name: "route miss", status: http.StatusNotFound, body: "404 page not found\n", wantErr: checkout.ErrSettlementFailed},
		{name: "proxy not found", status: http.StatusNotFound, body: `{"success":false,"message":"no upstream"}`, wantErr: checkout.ErrSettlementFailed},
		{name: "server error", status: http.StatusInternalServerError, body: `{"success":false,"message":"Server Error"}`, wantErr: checkout.ErrSettlementFailed},
		{name: "bad gateway html", status: http.StatusBadGateway, body: `<html>oops</html>`, wantErr: checkout.ErrSettlementFailed},
		{name: "malformed success", status: http.StatusOK, body: `{"success":tru`, wantErr: checkout.ErrSettlementFailed},
		{name: "success without data", status: http.StatusOK, body: `{"success":true}`, wantErr: checkout.ErrSettlementFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewLedgerClient(srv.URL, NewDefaultHTTPClient(time.Second)).Settle(context.Background(), settlementRequest())
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLedgerClientWrongBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewLedgerClient(srv.URL+"/v2", NewDefaultHTTPClient(time.Second)).Settle(context.Background(), settlementRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, checkout.ErrSettlementFailed)
	assert.False(t, errors.Is(err, plan.ErrPlanNotFound))
}

func TestLedgerClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewLedgerClient(url, NewDefaultHTTPClient(time.Second)).Settle(context.Background(), settlementRequest())
	assert.ErrorIs(t, err, checkout.ErrSettlementFailed)
}
