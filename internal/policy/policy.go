// Package policy evaluates a Rego push gate ahead of manifest.save — e.g.
// enforcing immutable tags. It replaces the vulnerability/signature policy
// the OPA dependency originally served with the same evaluation mechanics
// repurposed for the relational core's own invariants.
package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/rego"
)

const defaultPolicy = `
package registryx.policy

default allow = true

violations[msg] {
	input.immutable_tags
	input.tag_exists
	msg := sprintf("tag %q already exists in %q and immutable tags are enabled", [input.tag, input.repository])
}

allow = false {
	count(violations) > 0
}
`

type Gate struct {
	mu     sync.RWMutex
	source string
}

func New() *Gate {
	return &Gate{source: defaultPolicy}
}

// SetPolicy replaces the active policy after a syntax check.
func (g *Gate) SetPolicy(ctx context.Context, regoSource string) error {
	if _, err := rego.New(
		rego.Query("data.registryx.policy.allow"),
		rego.Module("policy.rego", regoSource),
	).PrepareForEval(ctx); err != nil {
		return fmt.Errorf("policy: invalid source: %w", err)
	}

	g.mu.Lock()
	g.source = regoSource
	g.mu.Unlock()
	return nil
}

// Input is the data evaluated against the active policy for a manifest push.
type Input struct {
	Repository     string `json:"repository"`
	Tag            string `json:"tag"`
	TagExists      bool   `json:"tag_exists"`
	ImmutableTags  bool   `json:"immutable_tags"`
}

// Evaluate reports whether a push is allowed and, if not, why.
func (g *Gate) Evaluate(ctx context.Context, input Input) (bool, []string, error) {
	g.mu.RLock()
	source := g.source
	g.mu.RUnlock()

	query, err := rego.New(
		rego.Query("data.registryx.policy.allow"),
		rego.Module("policy.rego", source),
	).PrepareForEval(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("policy: prepare: %w", err)
	}

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, nil, fmt.Errorf("policy: eval: %w", err)
	}
	if len(results) == 0 {
		return false, nil, fmt.Errorf("policy: undefined result")
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, nil, fmt.Errorf("policy: unexpected result type")
	}
	if allowed {
		return true, nil, nil
	}

	vQuery, err := rego.New(
		rego.Query("data.registryx.policy.violations"),
		rego.Module("policy.rego", source),
	).PrepareForEval(ctx)
	if err != nil {
		return false, nil, nil
	}
	vResults, err := vQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil || len(vResults) == 0 {
		return false, nil, nil
	}

	var messages []string
	if msgs, ok := vResults[0].Expressions[0].Value.([]interface{}); ok {
		for _, m := range msgs {
			messages = append(messages, fmt.Sprint(m))
		}
	}
	return false, messages, nil
}
