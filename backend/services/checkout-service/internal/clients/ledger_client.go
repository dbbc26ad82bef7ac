package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"meterpay/backend/libs/billing"
	"meterpay/backend/libs/plan"
	"meterpay/backend/services/checkout-service/internal/checkout"
)

// LedgerClient settles bills through billing-service.
type LedgerClient struct {
	base *BaseClient
}

// NewLedgerClient returns client instance.
func NewLedgerClient(baseURL string, httpClient HTTPDoer) *LedgerClient {
	return &LedgerClient{base: NewBaseClient(baseURL, httpClient)}
}

type payBillRequest struct {
	ConsumerID    string                `json:"consumerId"`
	ConsumerName  string                `json:"consumerName"`
	PlanName      string                `json:"planName"`
	UnitsUsed     int64                 `json:"unitsUsed"`
	PaymentMethod billing.PaymentMethod `json:"paymentMethod"`
}

type payBillResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		checkout.BillRecord
		ID int64 `json:"id"`
	} `json:"data"`
}

// planNotFoundMessage is the ledger's message for an unknown plan.
const planNotFoundMessage = "Plan not found"

// Settle posts the request to /api/paybill. Only the ledger's own "Plan not found"
// answer maps to plan.ErrPlanNotFound; every other failure, including a route miss,
// wraps checkout.ErrSettlementFailed.
func (c *LedgerClient) Settle(ctx context.Context, req checkout.SettlementRequest) (checkout.BillRecord, error) {
	body, err := json.Marshal(payBillRequest{
		ConsumerID:    req.ConsumerID,
		ConsumerName:  req.ConsumerName,
		PlanName:      req.PlanName,
		UnitsUsed:     req.UnitsUsed,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return checkout.BillRecord{}, err
	}

	status, respBody, err := c.base.Do(ctx, http.MethodPost, "/api/paybill", body)
	if err != nil {
		return checkout.BillRecord{}, fmt.Errorf("%w: %w", checkout.ErrSettlementFailed, err)
	}

	var resp payBillResponse
	decodeErr := json.Unmarshal(respBody, &resp)

	switch {
	case status == http.StatusNotFound && decodeErr == nil && !resp.Success && resp.Message == planNotFoundMessage:
		return checkout.BillRecord{}, fmt.Errorf("%w: %s", plan.ErrPlanNotFound, req.PlanName)
	case status != http.StatusOK:
		msg := resp.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(status)
		}
		return checkout.BillRecord{}, fmt.Errorf("%w: ledger returned %d: %s", checkout.ErrSettlementFailed, status, msg)
	case decodeErr != nil:
		return checkout.BillRecord{}, fmt.Errorf("%w: decode ledger response: %w", checkout.ErrSettlementFailed, decodeErr)
	case !resp.Success || resp.Data == nil:
		return checkout.BillRecord{}, fmt.Errorf("%w: ledger response without data", checkout.ErrSettlementFailed)
	}

	rec := resp.Data.BillRecord
	rec.BillID = resp.Data.ID
	return rec, nil
}
