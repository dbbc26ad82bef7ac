package repository

import (
	"context"
	"sync"
	"time"

	"meterpay/backend/services/billing-service/internal/models"
)

// MemoryBillRepository keeps the ledger in process memory. Used for local runs and tests.
type MemoryBillRepository struct {
	mu      sync.Mutex
	records []models.BillRecord
	nextID  int64
	now     func() time.Time
}

// NewMemoryBillRepository returns an empty in-memory ledger.
func NewMemoryBillRepository() *MemoryBillRepository {
	return &MemoryBillRepository{now: time.Now}
}

// Create appends a copy of rec and fills ID and SettledAt.
func (r *MemoryBillRepository) Create(ctx context.Context, rec *models.BillRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rec.ID = r.nextID
	rec.SettledAt = r.now().UTC()
	r.records = append(r.records, *rec)
	return nil
}

// Len reports how many records were appended.
func (r *MemoryBillRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
