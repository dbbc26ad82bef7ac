package repository

import (
	"context"
	"database/sql"

	libdb "meterpay/backend/libs/db"
	"meterpay/backend/services/billing-service/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS bill_records (
		id              BIGSERIAL PRIMARY KEY,
		consumer_id     TEXT NOT NULL,
		consumer_name   TEXT NOT NULL,
		plan_name       TEXT NOT NULL,
		units_used      BIGINT NOT NULL CHECK (units_used >= 0),
		total_cost      NUMERIC(20, 2) NOT NULL,
		remaining_units BIGINT NOT NULL DEFAULT 0,
		payment_status  TEXT NOT NULL DEFAULT 'Success' CHECK (payment_status IN ('Success', 'Pending', 'Failed')),
		payment_method  TEXT NOT NULL,
		settled_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS bill_records_consumer_idx ON bill_records (consumer_id, settled_at DESC)`,
}

// BillRepository appends settled bills to Postgres.
type BillRepository struct {
	db *sql.DB
}

// NewBillRepository returns repository.
func NewBillRepository(db *sql.DB) *BillRepository {
	return &BillRepository{db: db}
}

// EnsureSchema creates the ledger table when missing.
func (r *BillRepository) EnsureSchema(ctx context.Context) error {
	return libdb.ApplySchema(ctx, r.db, schema...)
}

// Create inserts a new record and fills ID and SettledAt from the database.
// A single INSERT per record keeps concurrent appends free of read-modify-write races.
func (r *BillRepository) Create(ctx context.Context, rec *models.BillRecord) error {
	const query = `
		INSERT INTO bill_records (consumer_id, consumer_name, plan_name, units_used, total_cost, remaining_units, payment_status, payment_method, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, settled_at
	`
	return r.db.QueryRowContext(ctx, query,
		rec.ConsumerID,
		rec.ConsumerName,
		rec.PlanName,
		rec.UnitsUsed,
		rec.TotalCost,
		rec.RemainingUnits,
		string(rec.PaymentStatus),
		string(rec.PaymentMethod),
	).Scan(&rec.ID, &rec.SettledAt)
}
