package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"meterpay/backend/libs/billing"
	"meterpay/backend/libs/mq"
	"meterpay/backend/services/billing-service/internal/models"
)

// RoutingKeyBillSettled is the routing key of the event emitted after a successful append.
const RoutingKeyBillSettled = "bill.settled"

const (
	defaultWriteTimeout   = 5 * time.Second
	defaultPublishTimeout = 3 * time.Second
)

// ErrPersistence is returned when the ledger could not durably record the bill.
var ErrPersistence = errors.New("ledger: bill could not be persisted")

// BillStore appends bill records.
type BillStore interface {
	Create(ctx context.Context, rec *models.BillRecord) error
}

// SettleInput is a validated settlement request.
type SettleInput struct {
	ConsumerID    string
	ConsumerName  string
	PlanName      string
	UnitsUsed     int64
	PaymentMethod billing.PaymentMethod
}

// BillSettledEvent is the payload published on RoutingKeyBillSettled.
type BillSettledEvent struct {
	BillID         int64                 `json:"billId"`
	ConsumerID     string                `json:"consumerId"`
	PlanName       string                `json:"planName"`
	UnitsUsed      int64                 `json:"unitsUsed"`
	TotalCost      json.Number           `json:"totalCost"`
	RemainingUnits int64                 `json:"remainingUnits"`
	PaymentMethod  billing.PaymentMethod `json:"paymentMethod"`
	SettledAt      time.Time             `json:"settledAt"`
}

// LedgerService settles bills: it recomputes the amounts and appends exactly one record per call.
type LedgerService struct {
	engine       *billing.Engine
	store        BillStore
	publisher    mq.Publisher
	metrics      *Metrics
	logger       *zap.Logger
	writeTimeout time.Duration
}

// NewLedgerService builds service. A nil publisher disables events; nil metrics disables instrumentation.
func NewLedgerService(engine *billing.Engine, store BillStore, publisher mq.Publisher, metrics *Metrics, logger *zap.Logger, writeTimeout time.Duration) *LedgerService {
	if publisher == nil {
		publisher = mq.NewNoopPublisher(logger)
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &LedgerService{
		engine:       engine,
		store:        store,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

// Settle resolves the plan, recomputes the bill and appends it with status Success.
// Unknown plans fail with plan.ErrPlanNotFound and nothing is written.
func (s *LedgerService) Settle(ctx context.Context, in SettleInput) (*models.BillRecord, error) {
	p, bill, err := s.engine.ComputeFor(in.PlanName, in.UnitsUsed)
	if err != nil {
		s.metrics.observeSettlement(outcomeRejected)
		return nil, err
	}

	rec := &models.BillRecord{
		ConsumerID:     in.ConsumerID,
		ConsumerName:   in.ConsumerName,
		PlanName:       p.Name,
		UnitsUsed:      in.UnitsUsed,
		TotalCost:      bill.TotalCost,
		RemainingUnits: bill.RemainingUnits,
		PaymentStatus:  billing.PaymentStatusSuccess,
		PaymentMethod:  in.PaymentMethod,
	}

	// The write outlives an abandoned request but never the write timeout.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	start := time.Now()
	err = s.store.Create(writeCtx, rec)
	s.metrics.observeWrite(time.Since(start))
	if err != nil {
		s.metrics.observeSettlement(outcomeFailed)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.metrics.observeSettlement(outcomeSettled)

	s.logger.Info("bill settled",
		zap.Int64("bill_id", rec.ID),
		zap.String("consumer_id", rec.ConsumerID),
		zap.String("plan", rec.PlanName),
		zap.Int64("units_used", rec.UnitsUsed),
		zap.String("total_cost", rec.TotalCost.StringFixed(billing.MinorUnitPlaces)),
	)

	s.publishSettled(ctx, rec)
	return rec, nil
}

func (s *LedgerService) publishSettled(ctx context.Context, rec *models.BillRecord) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPublishTimeout)
	defer cancel()

	event := BillSettledEvent{
		BillID:         rec.ID,
		ConsumerID:     rec.ConsumerID,
		PlanName:       rec.PlanName,
		UnitsUsed:      rec.UnitsUsed,
		TotalCost:      json.Number(rec.TotalCost.StringFixed(billing.MinorUnitPlaces)),
		RemainingUnits: rec.RemainingUnits,
		PaymentMethod:  rec.PaymentMethod,
		SettledAt:      rec.SettledAt,
	}
	if err := s.publisher.Publish(pubCtx, RoutingKeyBillSettled, event); err != nil {
		s.logger.Warn("failed to publish bill settled event", zap.Int64("bill_id", rec.ID), zap.Error(err))
	}
}
