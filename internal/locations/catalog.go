// Package locations holds the read-only department and municipality
// reference data consumed by the personal information step.
//
// A Catalog is built once at startup, from the embedded YAML, from a file
// named by LOCATIONS_FILE, or from PostgreSQL, and is never mutated
// afterwards, so it is safe for concurrent use.
package locations

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCatalog is returned when a source yields no departments.
var ErrEmptyCatalog = errors.New("location catalog is empty")

// Department is one department with its municipalities in display order.
type Department struct {
	Name           string   `yaml:"nombre" json:"nombre"`
	Municipalities []string `yaml:"municipios" json:"municipios"`
}

// Catalog maps departments to their municipalities.
type Catalog struct {
	departments []Department
	index       map[string]map[string]struct{}
}

// NewCatalog validates deps and builds a catalog preserving their order.
// Names are trimmed; empty and duplicate names are rejected.
func NewCatalog(deps []Department) (*Catalog, error) {
	if len(deps) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		departments: make([]Department, 0, len(deps)),
		index:       make(map[string]map[string]struct{}, len(deps)),
	}
	for i, d := range deps {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("department %d: empty name", i)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("department %q: duplicate", name)
		}
		if len(d.Municipalities) == 0 {
			return nil, fmt.Errorf("department %q: no municipalities", name)
		}

		muns := make(map[string]struct{}, len(d.Municipalities))
		list := make([]string, 0, len(d.Municipalities))
		for _, m := range d.Municipalities {
			m = strings.TrimSpace(m)
			if m == "" {
				return nil, fmt.Errorf("department %q: empty municipality", name)
			}
			if _, dup := muns[m]; dup {
				return nil, fmt.Errorf("department %q: duplicate municipality %q", name, m)
			}
			muns[m] = struct{}{}
			list = append(list, m)
		}

		c.index[name] = muns
		c.departments = append(c.departments, Department{Name: name, Municipalities: list})
	}
	return c, nil
}

// Departments returns the department names in catalog order.
func (c *Catalog) Departments() []string {
	out := make([]string, len(c.departments))
	for i, d := range c.departments {
		out[i] = d.Name
	}
	return out
}

// Municipalities returns the municipalities of dep, or false if dep is unknown.
func (c *Catalog) Municipalities(dep string) ([]string, bool) {
	for _, d := range c.departments {
		if d.Name == dep {
			return append([]string(nil), d.Municipalities...), true
		}
	}
	return nil, false
}

// HasDepartment reports whether dep is a known department.
func (c *Catalog) HasDepartment(dep string) bool {
	_, ok := c.index[dep]
	return ok
}

// Contains reports whether mun is a municipality of dep.
func (c *Catalog) Contains(dep, mun string) bool {
	muns, ok := c.index[dep]
	if !ok {
		return false
	}
	_, ok = muns[mun]
	return ok
}

// Len returns the number of departments.
func (c *Catalog) Len() int {
	return len(c.departments)
}

// All returns a copy of every department.
func (c *Catalog) All() []Department {
	out := make([]Department, len(c.departments))
	for i, d := range c.departments {
		out[i] = Department{Name: d.Name, Municipalities: append([]string(nil), d.Municipalities...)}
	}
	return out
}
