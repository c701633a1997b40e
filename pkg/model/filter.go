package model

import (
	"encoding/json"
	"fmt"
)

// Filter operators understood by the inventory search
const (
	OpEq     = "$eq"
	OpNe     = "$ne"
	OpIn     = "$in"
	OpNin    = "$nin"
	OpRegex  = "$regex"
	OpExists = "$exists"
	OpGt     = "$gt"
	OpGte    = "$gte"
	OpLt     = "$lt"
	OpLte    = "$lte"
)

// Filter is a stored query over device attributes. The backend evaluates it
// to select a dynamic device set when a deployment is created.
type Filter struct {
	ID    string       `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string       `json:"name" yaml:"name"`
	Terms []FilterTerm `json:"terms" yaml:"terms"`
}

// FilterTerm is one predicate of a filter. Value is any JSON value
// (string, number, list...) depending on Type.
type FilterTerm struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	Scope     string `json:"scope" yaml:"scope"`
	Type      string `json:"type" yaml:"type"`
	Value     any    `json:"value" yaml:"value"`
}

// Validate checks that a filter can be submitted.
func (f Filter) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("filter name is required")
	}
	if len(f.Terms) == 0 {
		return fmt.Errorf("filter %q has no terms", f.Name)
	}
	for i, t := range f.Terms {
		if t.Attribute == "" || t.Scope == "" || t.Type == "" {
			return fmt.Errorf("filter %q term %d: attribute, scope and type are required", f.Name, i)
		}
	}
	return nil
}

// TermsJSON renders the terms compactly for listings.
func (f Filter) TermsJSON() string {
	b, err := json.Marshal(f.Terms)
	if err != nil {
		return "[]"
	}
	return string(b)
}
