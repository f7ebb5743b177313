// Package provider holds the external identity verification clients and the
// shared plumbing they need: the normalized error taxonomy, the client-side
// rate limiter, and retry policy.
package provider

import (
	"context"
	"fmt"

	"remedia/internal/identity"
)

// Result is a successful provider response. Data holds the identity fields
// under the provider's own key spellings; the matcher's alias table resolves
// them. ResponseInfo carries provider metadata for the audit trail.
type Result struct {
	Data         map[string]string
	ResponseInfo map[string]any
}

// Verifier is the capability the verification pipeline depends on. A nil
// error implies a populated Result.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, kind identity.Kind, number string) (Result, error)
}

// Registry routes identity kinds to their verifier.
type Registry struct {
	byKind map[identity.Kind]Verifier
}

func NewRegistry() *Registry {
	return &Registry{byKind: make(map[identity.Kind]Verifier)}
}

func (r *Registry) Register(kind identity.Kind, v Verifier) error {
	if _, exists := r.byKind[kind]; exists {
		return fmt.Errorf("verifier for %s already registered", kind)
	}
	r.byKind[kind] = v
	return nil
}

// For returns the verifier handling kind, or a NOT_CONFIGURED error.
func (r *Registry) For(kind identity.Kind) (Verifier, error) {
	v, ok := r.byKind[kind]
	if !ok {
		return nil, NewError(CodeNotConfigured, string(kind), "no verifier configured for this identity kind", nil)
	}
	return v, nil
}

// Kinds lists the registered identity kinds.
func (r *Registry) Kinds() []identity.Kind {
	out := make([]identity.Kind, 0, len(r.byKind))
	for k := range r.byKind {
		out = append(out, k)
	}
	return out
}
