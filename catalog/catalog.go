/*
Package catalog holds the read-only property and unit catalog.

PURPOSE:
  Every negotiation starts from a unit's table plan. The catalog is loaded
  once at startup (from SQLite, seeded from a YAML/JSON file or the built-in
  demo data) and never mutated afterwards, so it can be shared freely between
  requests.

KEY TYPES:
  - Unit:     id, private area and table plan
  - Property: id, name and units in display order
  - Catalog:  validated, indexed, immutable collection of properties
  - Source:   anything that can list properties (store/sqlite.Store)

SEE ALSO:
  - factory.go:  file formats
  - defaults.go: demo catalog
  - store/sqlite/sqlite.go: persistent Source
*/
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/proposal-engine/plan"
)

var (
	// ErrPropertyNotFound is returned when a property id is not in the catalog.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrUnitNotFound is returned when a unit id is not in the property.
	ErrUnitNotFound = errors.New("unit not found")

	// ErrInvalidCatalog is returned when catalog data breaks a structural rule.
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Unit is a sellable unit and its standard payment plan.
type Unit struct {
	ID        string
	Area      decimal.Decimal
	TablePlan plan.PaymentPlan
}

// Property is a development with its units in display order.
type Property struct {
	ID    string
	Name  string
	Units []Unit
}

// Unit finds a unit by id.
func (p Property) Unit(id string) (Unit, bool) {
	for _, u := range p.Units {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

// UnitOrFirst finds a unit by id and falls back to the first unit. Switching
// property while a unit of the previous property is selected lands here.
func (p Property) UnitOrFirst(id string) Unit {
	if u, ok := p.Unit(id); ok {
		return u
	}
	return p.Units[0]
}

// Source lists catalog properties in display order.
type Source interface {
	ListProperties(ctx context.Context) ([]Property, error)
}

// Catalog is an immutable, indexed set of properties.
type Catalog struct {
	properties []Property
	byID       map[string]int
}

// New validates properties and builds a catalog.
func New(properties []Property) (*Catalog, error) {
	if len(properties) == 0 {
		return nil, fmt.Errorf("%w: no properties", ErrInvalidCatalog)
	}

	c := &Catalog{
		properties: make([]Property, len(properties)),
		byID:       make(map[string]int, len(properties)),
	}

	for i, p := range properties {
		if err := validateProperty(p); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate property id %q", ErrInvalidCatalog, p.ID)
		}
		c.byID[p.ID] = i

		units := make([]Unit, len(p.Units))
		copy(units, p.Units)
		c.properties[i] = Property{ID: p.ID, Name: p.Name, Units: units}
	}

	return c, nil
}

// Load reads every property from src and builds a catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	props, err := src.ListProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return New(props)
}

func validateProperty(p Property) error {
	if p.ID == "" {
		return fmt.Errorf("%w: property with empty id", ErrInvalidCatalog)
	}
	if len(p.Units) == 0 {
		return fmt.Errorf("%w: property %q has no units", ErrInvalidCatalog, p.ID)
	}

	seen := make(map[string]bool, len(p.Units))
	for _, u := range p.Units {
		if u.ID == "" {
			return fmt.Errorf("%w: property %q has a unit with empty id", ErrInvalidCatalog, p.ID)
		}
		if seen[u.ID] {
			return fmt.Errorf("%w: property %q has duplicate unit %q", ErrInvalidCatalog, p.ID, u.ID)
		}
		seen[u.ID] = true

		if !u.Area.IsPositive() {
			return fmt.Errorf("%w: unit %s/%s area must be positive", ErrInvalidCatalog, p.ID, u.ID)
		}
		if err := plan.ValidateTable(u.TablePlan); err != nil {
			return fmt.Errorf("%w: unit %s/%s: %v", ErrInvalidCatalog, p.ID, u.ID, err)
		}
	}
	return nil
}

// Properties returns every property in display order. The slice is a copy;
// units are shared and must not be modified.
func (c *Catalog) Properties() []Property {
	out := make([]Property, len(c.properties))
	copy(out, c.properties)
	return out
}

// Property finds a property by id.
func (c *Catalog) Property(id string) (Property, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Property{}, false
	}
	return c.properties[i], true
}

// First returns the first property in display order.
func (c *Catalog) First() Property {
	return c.properties[0]
}

// Lookup finds a property and one of its units.
func (c *Catalog) Lookup(propertyID, unitID string) (Property, Unit, error) {
	p, ok := c.Property(propertyID)
	if !ok {
		return Property{}, Unit{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, propertyID)
	}
	u, ok := p.Unit(unitID)
	if !ok {
		return Property{}, Unit{}, fmt.Errorf("%w: %s/%s", ErrUnitNotFound, propertyID, unitID)
	}
	return p, u, nil
}

// IsNotFound returns true if the error indicates a missing property or unit.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPropertyNotFound) || errors.Is(err, ErrUnitNotFound)
}
