// Package filter guards terminations with tag filters.
package filter

import (
	"context"

	"github.com/yairfalse/reaper/pkg/instance"
)

// Reason is the blocked reason recorded for filtered-out instances.
const Reason = "Instance excluded by tag filter"

// Filter decides which described instances may be terminated.
type Filter struct {
	includeTags map[string]string
	excludeTags map[string]string
	policy      *Policy
}

// New creates a new Filter. Nil maps disable the corresponding check.
func New(includeTags, excludeTags map[string]string) *Filter {
	return &Filter{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Allows returns true if the snapshot passes the tag filters. Snapshots in
// unknown state were never described, so they are not filtered.
func (f *Filter) Allows(s instance.Snapshot) bool {
	if f == nil || f.IsEmpty() || s.State == instance.StateUnknown {
		return true
	}

	// Include tags: ALL must match
	for k, v := range f.includeTags {
		if s.Tags == nil || s.Tags[k] != v {
			return false
		}
	}

	// Exclude tags: ANY match excludes
	for k, v := range f.excludeTags {
		if s.Tags != nil && s.Tags[k] == v {
			return false
		}
	}

	return true
}

// WithPolicy attaches a Rego guard evaluated after the tag filters.
func (f *Filter) WithPolicy(p *Policy) *Filter {
	f.policy = p
	return f
}

// Check runs the tag filters and then the policy. It returns the blocked
// reason, or "" when the instance may be terminated.
func (f *Filter) Check(ctx context.Context, id instance.ID, s instance.Snapshot) (string, error) {
	if !f.Allows(s) {
		return Reason, nil
	}
	if f == nil || f.policy == nil || s.State == instance.StateUnknown {
		return "", nil
	}

	allowed, err := f.policy.Allows(ctx, id, s)
	if err != nil {
		return "", err
	}
	if !allowed {
		return PolicyReason, nil
	}
	return "", nil
}

// IsEmpty returns true if no tag filters are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.includeTags) == 0 && len(f.excludeTags) == 0
}
