// Package billing turns a plan and a metered usage figure into the amount due.
// Everything here is pure: the checkout preview and the ledger commit call the
// same functions independently.
package billing

import (
	"errors"

	"github.com/shopspring/decimal"

	"meterpay/backend/libs/plan"
)

const (
	// MinorUnitPlaces is the currency precision totals are rounded to.
	MinorUnitPlaces = 2

	// MaxUnitsUsed bounds one bill's usage. With plan.MaxPricePerUnit it keeps every
	// total inside the ledger's NUMERIC(20, 2) column.
	MaxUnitsUsed int64 = 1_000_000_000
)

var (
	// ErrNegativeUnits rejects usage below zero.
	ErrNegativeUnits = errors.New("billing: units used must not be negative")
	// ErrTooManyUnits rejects usage above MaxUnitsUsed.
	ErrTooManyUnits = errors.New("billing: units used exceeds the maximum")
)

// Bill is the computed outcome for one usage figure.
type Bill struct {
	TotalCost      decimal.Decimal
	RemainingUnits int64
}

// Compute charges every used unit at the plan's flat rate; the included allowance only
// drives RemainingUnits.
func Compute(p plan.Plan, unitsUsed int64) (Bill, error) {
	if unitsUsed < 0 {
		return Bill{}, ErrNegativeUnits
	}
	if unitsUsed > MaxUnitsUsed {
		return Bill{}, ErrTooManyUnits
	}

	total := p.PricePerUnit.Mul(decimal.NewFromInt(unitsUsed)).Round(MinorUnitPlaces)

	remaining := p.UnitsIncluded - unitsUsed
	if remaining < 0 {
		remaining = 0
	}

	return Bill{TotalCost: total, RemainingUnits: remaining}, nil
}

// Engine resolves plan names against a catalog before computing.
type Engine struct {
	catalog *plan.Catalog
}

// NewEngine returns an engine bound to catalog.
func NewEngine(catalog *plan.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// ComputeFor looks the plan up by name and computes the bill. Unknown names fail with
// plan.ErrPlanNotFound.
func (e *Engine) ComputeFor(planName string, unitsUsed int64) (plan.Plan, Bill, error) {
	p, err := e.catalog.Lookup(planName)
	if err != nil {
		return plan.Plan{}, Bill{}, err
	}
	bill, err := Compute(p, unitsUsed)
	if err != nil {
		return plan.Plan{}, Bill{}, err
	}
	return p, bill, nil
}

// Catalog exposes the bound catalog.
func (e *Engine) Catalog() *plan.Catalog {
	return e.catalog
}
