package domain

import "strings"

// Flags are the access-control switches attached to a route.
// They are independent; a route may combine several of them.
type Flags struct {
	DevOnly     bool `json:"dev_only,omitempty" yaml:"dev_only,omitempty"`
	AdminOnly   bool `json:"admin_only,omitempty" yaml:"admin_only,omitempty"`
	GroupOnly   bool `json:"group_only,omitempty" yaml:"group_only,omitempty"`
	PrivateOnly bool `json:"private_only,omitempty" yaml:"private_only,omitempty"`

	// Inactive routes are dropped when the route table is built.
	Inactive bool `json:"inactive,omitempty" yaml:"inactive,omitempty"`
}

// String renders the set flags as a compact comma separated list.
func (f Flags) String() string {
	var parts []string
	if f.DevOnly {
		parts = append(parts, "dev")
	}
	if f.AdminOnly {
		parts = append(parts, "admin")
	}
	if f.GroupOnly {
		parts = append(parts, "group")
	}
	if f.PrivateOnly {
		parts = append(parts, "private")
	}
	if f.Inactive {
		parts = append(parts, "inactive")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

// DenialReason explains why the policy gate refused an event.
type DenialReason string

const (
	DenyNone        DenialReason = ""
	DenyNotDev      DenialReason = "not_dev"
	DenyPrivateOnly DenialReason = "private_only"
	DenyGroupOnly   DenialReason = "group_only"
	DenyNotAdmin    DenialReason = "not_admin"
)
