package suite

import (
	"slices"

	"github.com/mrz1836/trellis/internal/orchestrator"
)

// Filter selects plans. Empty fields match everything.
type Filter struct {
	// Tenants keeps plans whose primary tenant is listed.
	Tenants []string

	// Capabilities keeps plans whose sessions all use listed capabilities.
	Capabilities []string

	// Tags keeps plans carrying at least one listed tag.
	Tags []string
}

// IsZero reports whether f matches every plan.
func (f Filter) IsZero() bool {
	return len(f.Tenants) == 0 && len(f.Capabilities) == 0 && len(f.Tags) == 0
}

// Match reports whether p passes f.
func (f Filter) Match(p *orchestrator.Plan) bool {
	if len(f.Tenants) > 0 && !slices.Contains(f.Tenants, p.TenantID()) {
		return false
	}
	if len(f.Capabilities) > 0 {
		for _, c := range p.Capabilities() {
			if !slices.Contains(f.Capabilities, c) {
				return false
			}
		}
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(p.Tags(), func(tag string) bool {
		return slices.Contains(f.Tags, tag)
	}) {
		return false
	}
	return true
}

// Apply returns the plans that pass f, keeping their order.
func (f Filter) Apply(plans []*orchestrator.Plan) []*orchestrator.Plan {
	if f.IsZero() {
		return slices.Clone(plans)
	}
	out := make([]*orchestrator.Plan, 0, len(plans))
	for _, p := range plans {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
