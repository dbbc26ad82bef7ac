// Package plan holds the read-only prepaid plan catalog shared by the billing and checkout services.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Status marks whether a plan can be selected.
type Status string

// Plan statuses.
const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// ErrPlanNotFound is returned for names absent from the catalog.
var ErrPlanNotFound = errors.New("plan not found")

// MaxPricePerUnit caps a plan's rate.
var MaxPricePerUnit = decimal.NewFromInt(1_000_000)

// Plan is a named pricing tier. Values are never mutated after the catalog is built.
type Plan struct {
	Name          string          `json:"name" yaml:"name"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit" yaml:"-"`
	UnitsIncluded int64           `json:"unitsIncluded" yaml:"unitsIncluded"`
	ValidityDays  int             `json:"validityDays" yaml:"validityDays"`
	Status        Status          `json:"status" yaml:"status"`
}

// IsActive reports whether the plan is selectable.
func (p Plan) IsActive() bool {
	return p.Status == StatusActive
}

// MarshalJSON renders pricePerUnit as a JSON number.
func (p Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name          string      `json:"name"`
		PricePerUnit  json.Number `json:"pricePerUnit"`
		UnitsIncluded int64       `json:"unitsIncluded"`
		ValidityDays  int         `json:"validityDays"`
		Status        Status      `json:"status"`
	}{
		Name:          p.Name,
		PricePerUnit:  json.Number(p.PricePerUnit.String()),
		UnitsIncluded: p.UnitsIncluded,
		ValidityDays:  p.ValidityDays,
		Status:        p.Status,
	})
}

// UnmarshalYAML decodes a catalog entry; pricePerUnit is parsed as an exact decimal.
func (p *Plan) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name          string    `yaml:"name"`
		PricePerUnit  yaml.Node `yaml:"pricePerUnit"`
		UnitsIncluded int64     `yaml:"unitsIncluded"`
		ValidityDays  int       `yaml:"validityDays"`
		Status        Status    `yaml:"status"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	price, err := decimal.NewFromString(strings.TrimSpace(raw.PricePerUnit.Value))
	if err != nil {
		return fmt.Errorf("plan %q: pricePerUnit: %w", raw.Name, err)
	}

	*p = Plan{
		Name:          strings.TrimSpace(raw.Name),
		PricePerUnit:  price,
		UnitsIncluded: raw.UnitsIncluded,
		ValidityDays:  raw.ValidityDays,
		Status:        raw.Status,
	}
	return nil
}

func (p Plan) validate() error {
	switch {
	case p.Name == "":
		return errors.New("name is required")
	case !p.PricePerUnit.IsPositive():
		return fmt.Errorf("plan %q: pricePerUnit must be positive", p.Name)
	case p.PricePerUnit.GreaterThan(MaxPricePerUnit):
		return fmt.Errorf("plan %q: pricePerUnit must not exceed %s", p.Name, MaxPricePerUnit)
	case p.UnitsIncluded < 0:
		return fmt.Errorf("plan %q: unitsIncluded must not be negative", p.Name)
	case p.ValidityDays < 0:
		return fmt.Errorf("plan %q: validityDays must not be negative", p.Name)
	}
	switch p.Status {
	case StatusActive, StatusInactive:
	default:
		return fmt.Errorf("plan %q: unknown status %q", p.Name, p.Status)
	}
	return nil
}
