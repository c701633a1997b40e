package model

import "time"

// Attribute scopes known to the inventory service
const (
	ScopeInventory = "inventory"
	ScopeIdentity  = "identity"
	ScopeSystem    = "system"
	ScopeTags      = "tags"
)

// Attribute is a single inventory attribute of a device
type Attribute struct {
	Name        string `json:"name"`
	Value       any    `json:"value"`
	Scope       string `json:"scope,omitempty"`
	Description string `json:"description,omitempty"`
}

// InventoryDevice is a device as stored by the inventory service
type InventoryDevice struct {
	ID         string      `json:"id"`
	Attributes []Attribute `json:"attributes,omitempty"`
	UpdatedTs  *time.Time  `json:"updated_ts,omitempty"`
}

// Attribute looks up an attribute by name and scope. An empty scope matches any scope.
func (d InventoryDevice) Attribute(name, scope string) (Attribute, bool) {
	for _, a := range d.Attributes {
		if a.Name == name && (scope == "" || a.Scope == scope) {
			return a, true
		}
	}
	return Attribute{}, false
}

// Group is a named set of devices. A device is a member of at most one group.
type Group struct {
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
}

// GroupAssignment is the body of a group membership update
type GroupAssignment struct {
	Group string `json:"group"`
}
