package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyAllowsNewTag(t *testing.T) {
	g := New()
	allowed, violations, err := g.Evaluate(context.Background(), Input{
		Repository: "library/nginx", Tag: "v1", TagExists: false, ImmutableTags: true,
	})
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, violations)
}

func TestDefaultPolicyDeniesImmutableOverwrite(t *testing.T) {
	g := New()
	allowed, violations, err := g.Evaluate(context.Background(), Input{
		Repository: "library/nginx", Tag: "v1", TagExists: true, ImmutableTags: true,
	})
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.NotEmpty(t, violations)
}

func TestDefaultPolicyAllowsOverwriteWhenNotImmutable(t *testing.T) {
	g := New()
	allowed, _, err := g.Evaluate(context.Background(), Input{
		Repository: "library/nginx", Tag: "latest", TagExists: true, ImmutableTags: false,
	})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSetPolicyRejectsInvalidSyntax(t *testing.T) {
	g := New()
	err := g.SetPolicy(context.Background(), "not valid rego {{{")
	assert.Error(t, err)
}
