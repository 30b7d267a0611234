package filter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/reaper/pkg/instance"
)

const protectProd = `package reaper.guard

default allow := false

allow if {
	input.tags.env != "prod"
}
`

func TestPolicy_Allows(t *testing.T) {
	ctx := context.Background()
	p, err := NewPolicy(ctx, "protect_prod.rego", protectProd)
	require.NoError(t, err)

	tests := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{"staging allowed", map[string]string{"env": "staging"}, true},
		{"prod denied", map[string]string{"env": "prod"}, false},
		{"untagged denied", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Allows(ctx, "i-1", running(tt.tags))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicy_UsesInstanceFields(t *testing.T) {
	ctx := context.Background()
	p, err := NewPolicy(ctx, "by_type.rego", `package reaper.guard

allow if {
	input.instance_id == "i-ok"
	input.instance_type == "t3.micro"
	input.state == "running"
}
`)
	require.NoError(t, err)

	snapshot := instance.Snapshot{State: instance.StateRunning, InstanceType: "t3.micro"}

	allowed, err := p.Allows(ctx, "i-ok", snapshot)
	require.NoError(t, err)
	assert.True(t, allowed)

	// allow is undefined for other instances
	allowed, err = p.Allows(ctx, "i-other", snapshot)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestNewPolicy_CompileError(t *testing.T) {
	_, err := NewPolicy(context.Background(), "broken.rego", "package reaper.guard\n\nallow if {")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.rego")
}

func TestPolicy_NonBooleanAllow(t *testing.T) {
	ctx := context.Background()
	p, err := NewPolicy(ctx, "string.rego", "package reaper.guard\n\nallow := \"yes\"\n")
	require.NoError(t, err)

	_, err = p.Allows(ctx, "i-1", running(nil))
	assert.Error(t, err)
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.rego")
	require.NoError(t, os.WriteFile(path, []byte(protectProd), 0o600))

	p, err := LoadPolicy(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "guard.rego", p.name)

	_, err = LoadPolicy(context.Background(), filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)
}

func TestCheck_WithPolicy(t *testing.T) {
	ctx := context.Background()
	p, err := NewPolicy(ctx, "protect_prod.rego", protectProd)
	require.NoError(t, err)
	f := New(nil, nil).WithPolicy(p)

	reason, err := f.Check(ctx, "i-1", running(map[string]string{"env": "prod"}))
	require.NoError(t, err)
	assert.Equal(t, PolicyReason, reason)

	reason, err = f.Check(ctx, "i-2", running(map[string]string{"env": "dev"}))
	require.NoError(t, err)
	assert.Empty(t, reason)
}

func TestCheck_PolicySkipsUnknownState(t *testing.T) {
	ctx := context.Background()
	p, err := NewPolicy(ctx, "protect_prod.rego", protectProd)
	require.NoError(t, err)
	f := New(nil, nil).WithPolicy(p)

	reason, err := f.Check(ctx, "i-1", instance.UnknownSnapshot())
	require.NoError(t, err)
	assert.Empty(t, reason)
}
