package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"meterpay/backend/libs/plan"
	"meterpay/backend/services/checkout-service/internal/checkout"
	"meterpay/backend/services/checkout-service/internal/store"
)

const (
	defaultSettleTimeout = 15 * time.Second

	settledSaveAttempts = 3
	settledSaveBackoff  = 50 * time.Millisecond
)

// Ledger settles a bill and returns the stored record.
type Ledger interface {
	Settle(ctx context.Context, req checkout.SettlementRequest) (checkout.BillRecord, error)
}

// Notifier receives a snapshot after every successful change.
type Notifier interface {
	Publish(sessionID string, payload interface{})
}

// CheckoutService drives the checkout workflow for many concurrent sessions. Requests
// on one session are serialized; a payment in flight blocks every other action on it.
type CheckoutService struct {
	catalog  *plan.Catalog
	store    store.SessionStore
	ledger   Ledger
	notifier Notifier
	metrics  *Metrics
	logger   *zap.Logger

	settleTimeout time.Duration

	locks    *sessionLocks
	group    singleflight.Group
	mu       sync.Mutex
	inFlight map[string]struct{}
	unsaved  map[string][]byte
	now      func() time.Time
}

// Options carries the optional collaborators.
type Options struct {
	Notifier      Notifier
	Metrics       *Metrics
	SettleTimeout time.Duration
}

// NewCheckoutService builds service.
func NewCheckoutService(catalog *plan.Catalog, sessions store.SessionStore, ledger Ledger, logger *zap.Logger, opts Options) *CheckoutService {
	timeout := opts.SettleTimeout
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	return &CheckoutService{
		catalog:       catalog,
		store:         sessions,
		ledger:        ledger,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		logger:        logger,
		settleTimeout: timeout,
		locks:         newSessionLocks(),
		inFlight:      make(map[string]struct{}),
		unsaved:       make(map[string][]byte),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Catalog returns the plan catalog offered at PlanSelection.
func (s *CheckoutService) Catalog() *plan.Catalog {
	return s.catalog
}

// Create starts a new session at PlanSelection.
func (s *CheckoutService) Create(ctx context.Context) (*store.Record, error) {
	now := s.now()
	rec := &store.Record{
		ID:        uuid.NewString(),
		Session:   checkout.NewSession(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("checkout session created", zap.String("session_id", rec.ID))
	return rec, nil
}

// Get returns the current state of the session.
func (s *CheckoutService) Get(ctx context.Context, id string) (*store.Record, error) {
	return s.load(ctx, id)
}

// Transactions lists the bills settled in this session, newest first.
func (s *CheckoutService) Transactions(ctx context.Context, id string) ([]checkout.TransactionSummary, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.History.List(), nil
}

// SelectPlan picks planName from the catalog.
func (s *CheckoutService) SelectPlan(ctx context.Context, id, planName string) (*store.Record, error) {
	return s.apply(ctx, id, "select_plan", func(rec *store.Record) error {
		p, err := s.catalog.Lookup(planName)
		if err != nil {
			return err
		}
		return rec.Session.SelectPlan(p)
	})
}

// SubmitDetails stores the consumer fields and the preview.
func (s *CheckoutService) SubmitDetails(ctx context.Context, id string, details checkout.Details) (*store.Record, error) {
	return s.apply(ctx, id, "submit_details", func(rec *store.Record) error {
		return rec.Session.SubmitDetails(details)
	})
}

// Back returns to the previous stage.
func (s *CheckoutService) Back(ctx context.Context, id string) (*store.Record, error) {
	return s.apply(ctx, id, "back", func(rec *store.Record) error {
		return rec.Session.Back()
	})
}

// ChoosePaymentMethod records the method picked at review.
func (s *CheckoutService) ChoosePaymentMethod(ctx context.Context, id, method string) (*store.Record, error) {
	return s.apply(ctx, id, "payment_method", func(rec *store.Record) error {
		return rec.Session.ChoosePaymentMethod(method)
	})
}

// Reset starts over after a receipt. The transaction history is kept.
func (s *CheckoutService) Reset(ctx context.Context, id string) (*store.Record, error) {
	return s.apply(ctx, id, "reset", func(rec *store.Record) error {
		return rec.Session.Reset()
	})
}

// Pay settles the session with the ledger. Concurrent calls for one session share a
// single ledger request. On failure the session stays at review with its data and
// the returned record carries the error for display.
func (s *CheckoutService) Pay(ctx context.Context, id string) (*store.Record, error) {
	v, err, shared := s.group.Do(id, func() (interface{}, error) {
		return s.settle(ctx, id)
	})
	if shared {
		s.logger.Debug("joined in-flight settlement", zap.String("session_id", id))
	}
	rec, _ := v.(*store.Record)
	return rec, err
}

func (s *CheckoutService) settle(ctx context.Context, id string) (*store.Record, error) {
	unlock := s.locks.lock(id)
	if s.isInFlight(id) {
		unlock()
		return nil, checkout.ErrSettlementInFlight
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	req, err := rec.Session.BeginSettlement()
	if err != nil {
		unlock()
		s.metrics.observeAction("pay", err)
		return nil, err
	}
	s.setInFlight(id, true)
	unlock()

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settleTimeout)
	bill, settleErr := s.ledger.Settle(settleCtx, req)
	cancel()

	unlock = s.locks.lock(id)
	defer unlock()
	defer s.setInFlight(id, false)

	if settleErr != nil {
		if !errors.Is(settleErr, plan.ErrPlanNotFound) && !errors.Is(settleErr, checkout.ErrSettlementFailed) {
			settleErr = fmt.Errorf("%w: %w", checkout.ErrSettlementFailed, settleErr)
		}
		s.metrics.observeSettlement("failed")
		s.logger.Warn("settlement failed", zap.String("session_id", id), zap.String("plan", req.PlanName), zap.Error(settleErr))

		_ = rec.Session.FailSettlement(failureMessage(settleErr))
		if err := s.save(ctx, rec); err != nil {
			return nil, err
		}
		return rec, settleErr
	}

	if err := rec.Session.CompleteSettlement(bill); err != nil {
		return nil, err
	}
	summary := rec.History.RecordLocal(bill, req.PaymentMethod)
	s.metrics.observeSettlement("settled")
	s.metrics.observeAction("pay", nil)

	if err := s.saveSettled(ctx, rec); err != nil {
		// The bill is already in the ledger. Answer with the receipt so the consumer
		// is not asked to pay again; the stored session lags until its next save.
		s.logger.Error("settled bill not recorded in session",
			zap.String("session_id", id),
			zap.Int64("bill_id", bill.BillID),
			zap.String("transaction_id", summary.ID),
			zap.Error(err),
		)
		s.keepUnsaved(rec)
		if s.notifier != nil {
			s.notifier.Publish(rec.ID, NewSessionView(rec))
		}
		return rec, nil
	}
	s.logger.Info("checkout settled",
		zap.String("session_id", id),
		zap.String("transaction_id", summary.ID),
		zap.Int64("bill_id", bill.BillID),
	)
	return rec, nil
}

func failureMessage(err error) string {
	if errors.Is(err, plan.ErrPlanNotFound) {
		return "Plan not found"
	}
	return "Payment could not be completed, please try again"
}

// apply runs fn on the stored session under the session lock and persists the result.
// fn must leave the record untouched when it fails.
func (s *CheckoutService) apply(ctx context.Context, id, action string, fn func(*store.Record) error) (*store.Record, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	if s.isInFlight(id) {
		s.metrics.observeAction(action, checkout.ErrSettlementInFlight)
		return nil, checkout.ErrSettlementInFlight
	}

	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		s.metrics.observeAction(action, err)
		return nil, err
	}
	s.metrics.observeAction(action, nil)

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// saveSettled persists a settled session, retrying a few times with a growing pause.
func (s *CheckoutService) saveSettled(ctx context.Context, rec *store.Record) error {
	var err error
	for attempt := 0; attempt < settledSaveAttempts; attempt++ {
		if attempt > 0 {
			s.logger.Warn("retrying settled session save",
				zap.String("session_id", rec.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			time.Sleep(settledSaveBackoff * time.Duration(attempt))
		}
		if err = s.save(ctx, rec); err == nil {
			return nil
		}
	}
	return err
}

func (s *CheckoutService) save(ctx context.Context, rec *store.Record) error {
	rec.UpdatedAt = s.now()
	if err := s.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.mu.Lock()
	delete(s.unsaved, rec.ID)
	s.mu.Unlock()
	if s.notifier != nil {
		s.notifier.Publish(rec.ID, NewSessionView(rec))
	}
	return nil
}

// load prefers a settled record the store has not accepted yet over the stored one.
func (s *CheckoutService) load(ctx context.Context, id string) (*store.Record, error) {
	s.mu.Lock()
	data, ok := s.unsaved[id]
	s.mu.Unlock()
	if !ok {
		return s.store.Get(ctx, id)
	}
	var rec store.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// keepUnsaved holds rec in process until a later save of the session succeeds.
func (s *CheckoutService) keepUnsaved(rec *store.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("encode unsaved session", zap.String("session_id", rec.ID), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.unsaved[rec.ID] = data
	s.mu.Unlock()
}

func (s *CheckoutService) isInFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[id]
	return ok
}

func (s *CheckoutService) setInFlight(id string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.inFlight[id] = struct{}{}
		return
	}
	delete(s.inFlight, id)
}
