package filter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/yairfalse/reaper/pkg/instance"
)

// PolicyReason is the blocked reason recorded when the guard policy denies
// an instance.
const PolicyReason = "Instance excluded by guard policy"

// PolicyQuery is the rule a guard policy must define.
const PolicyQuery = "data.reaper.guard.allow"

// PolicyInput is the document a guard policy sees as `input`.
type PolicyInput struct {
	InstanceID   string            `json:"instance_id"`
	State        string            `json:"state"`
	InstanceType string            `json:"instance_type,omitempty"`
	Tags         map[string]string `json:"tags"`
}

// Policy is a compiled Rego guard. The instance is allowed only when
// data.reaper.guard.allow evaluates to true.
type Policy struct {
	name  string
	query rego.PreparedEvalQuery
}

// NewPolicy compiles a Rego module.
func NewPolicy(ctx context.Context, name, module string) (*Policy, error) {
	query, err := rego.New(
		rego.Query(PolicyQuery),
		rego.Module(name, module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", name, err)
	}
	return &Policy{name: name, query: query}, nil
}

// LoadPolicy reads and compiles a .rego file.
func LoadPolicy(ctx context.Context, path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return NewPolicy(ctx, filepath.Base(path), string(data))
}

// Allows evaluates the policy for one described instance. An undefined
// result denies.
func (p *Policy) Allows(ctx context.Context, id instance.ID, s instance.Snapshot) (bool, error) {
	input := PolicyInput{
		InstanceID:   id,
		State:        string(s.State),
		InstanceType: s.InstanceType,
		Tags:         s.Tags,
	}
	if input.Tags == nil {
		input.Tags = map[string]string{}
	}

	results, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluate policy %s: %w", p.name, err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy %s: allow must be a boolean, got %T", p.name, results[0].Expressions[0].Value)
	}
	return allowed, nil
}
