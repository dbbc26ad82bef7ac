package plan

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the immutable plan list. Build it once at startup and pass it to whoever needs it.
type Catalog struct {
	plans  []Plan
	byName map[string]int
}

// NewCatalog validates plans and returns a catalog. Names must be unique.
func NewCatalog(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, errors.New("catalog: no plans")
	}

	c := &Catalog{
		plans:  make([]Plan, 0, len(plans)),
		byName: make(map[string]int, len(plans)),
	}
	for _, p := range plans {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if _, dup := c.byName[p.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate plan %q", p.Name)
		}
		c.byName[p.Name] = len(c.plans)
		c.plans = append(c.plans, p)
	}
	return c, nil
}

// LoadCatalog reads a YAML file of the form `plans: [{name, pricePerUnit, ...}]`.
func LoadCatalog(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read file: %w", err)
	}

	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return NewCatalog(doc.Plans)
}

// Lookup resolves a plan by exact name.
func (c *Catalog) Lookup(name string) (Plan, error) {
	idx, ok := c.byName[name]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, name)
	}
	return c.plans[idx], nil
}

// Plans returns every plan in file order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Active returns the selectable plans in file order.
func (c *Catalog) Active() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}
