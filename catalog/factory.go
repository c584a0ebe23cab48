/*
factory.go - Catalog file formats

PURPOSE:
  Converts YAML or JSON catalog definitions into Property and Unit values.
  Sales can maintain the price tables as a file, and the same JSON shapes
  are what the suggestion provider receives.

SCHEMA (YAML):
  properties:
    - id: jardins
      name: Residencial Jardins
      units:
        - id: "101"
          area: 68.5
          tablePlan:
            total: 500000
            downPayment: 100000
            installments: {value: 5000, count: 40}
            annual: {value: 10000, count: 4}
            balloon: 20000
            financed: 140000   # optional, derived when absent

USAGE:
  props, err := catalog.ParseFile("catalog.yaml")
  cat, err := catalog.New(props)
*/
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/proposal-engine/plan"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// FileJSON is the top-level catalog document.
type FileJSON struct {
	Properties []PropertyJSON `json:"properties" yaml:"properties"`
}

// PropertyJSON is the wire form of Property.
type PropertyJSON struct {
	ID    string     `json:"id" yaml:"id"`
	Name  string     `json:"name" yaml:"name"`
	Units []UnitJSON `json:"units" yaml:"units"`
}

// UnitJSON is the wire form of Unit.
type UnitJSON struct {
	ID        string               `json:"id" yaml:"id"`
	Area      float64              `json:"area" yaml:"area"`
	TablePlan plan.PaymentPlanJSON `json:"tablePlan" yaml:"tablePlan"`
}

// Format is a catalog file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// =============================================================================
// PARSING
// =============================================================================

// ParseFile reads a catalog file; the format comes from the extension.
func ParseFile(path string) ([]Property, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	return Parse(data, format)
}

// Parse decodes catalog data and checks it the way New does, so a file that
// would not load is rejected before anything is stored.
func Parse(data []byte, format Format) ([]Property, error) {
	var doc FileJSON
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidCatalog, format)
	}

	props := make([]Property, 0, len(doc.Properties))
	for _, pj := range doc.Properties {
		p, err := pj.ToProperty()
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	if _, err := New(props); err != nil {
		return nil, err
	}
	return props, nil
}

// ToProperty converts the wire form.
func (j PropertyJSON) ToProperty() (Property, error) {
	p := Property{ID: j.ID, Name: j.Name, Units: make([]Unit, 0, len(j.Units))}
	for _, uj := range j.Units {
		u, err := uj.ToUnit()
		if err != nil {
			return Property{}, fmt.Errorf("%w: property %q: %v", ErrInvalidCatalog, j.ID, err)
		}
		p.Units = append(p.Units, u)
	}
	return p, nil
}

// ToUnit converts the wire form.
func (j UnitJSON) ToUnit() (Unit, error) {
	if err := plan.CheckFinite("area", j.Area); err != nil {
		return Unit{}, fmt.Errorf("unit %q: %w", j.ID, err)
	}
	table, err := j.TablePlan.ToPlan()
	if err != nil {
		return Unit{}, fmt.Errorf("unit %q: %w", j.ID, err)
	}
	return Unit{ID: j.ID, Area: decimal.NewFromFloat(j.Area), TablePlan: table}, nil
}

// PropertyToJSON converts a property to its wire form.
func PropertyToJSON(p Property) PropertyJSON {
	units := make([]UnitJSON, len(p.Units))
	for i, u := range p.Units {
		units[i] = UnitToJSON(u)
	}
	return PropertyJSON{ID: p.ID, Name: p.Name, Units: units}
}

// UnitToJSON converts a unit to its wire form.
func UnitToJSON(u Unit) UnitJSON {
	return UnitJSON{ID: u.ID, Area: u.Area.InexactFloat64(), TablePlan: plan.PlanToJSON(u.TablePlan)}
}
