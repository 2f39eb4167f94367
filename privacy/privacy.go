// Package privacy evaluates access policies over fetches and mutations
// before they are compiled to SQL. Rules return one of three decisions:
// Allow terminates the chain permitting the operation, Deny rejects it,
// and Skip hands over to the next rule. Rules may also narrow the
// operation, typically by ANDing a qualifier into it.
package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/celer/model"
	"github.com/syssam/celer/qualifier"
)

// Policy decision sentinel errors. Check them with errors.Is.
var (
	// Allow may be returned by rules to terminate the evaluation with
	// an allow decision.
	Allow = errors.New("celer/privacy: allow rule")

	// Deny may be returned by rules to terminate the evaluation with
	// a deny decision.
	Deny = errors.New("celer/privacy: deny rule")

	// Skip may be returned by rules to continue to the next rule.
	Skip = errors.New("celer/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Op is a mutation operation.
type Op uint

// Mutation operations.
const (
	OpCreate Op = 1 << iota
	OpUpdate
	OpDelete
)

// Is reports whether o is contained in the given bitmask.
func (o Op) Is(mask Op) bool { return o&mask != 0 }

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Mutation describes a pending write before compilation.
type Mutation struct {
	// Entity is the name of the mutated entity.
	Entity string
	// Op is the mutation operation.
	Op Op
	// Keys lists the changed value keys, in caller order. Empty for
	// deletes.
	Keys []string
	// Qualifier restricts the affected rows. Rules may replace it.
	Qualifier qualifier.Qualifier
}

type (
	// QueryRule decides whether a fetch is allowed, and may narrow it.
	QueryRule interface {
		EvalQuery(context.Context, *model.FetchSpecification) error
	}

	// QueryPolicy combines multiple query rules into a single policy.
	QueryPolicy []QueryRule

	// MutationRule decides whether a mutation is allowed, and may
	// narrow it.
	MutationRule interface {
		EvalMutation(context.Context, *Mutation) error
	}

	// MutationPolicy combines multiple mutation rules into a single
	// policy.
	MutationPolicy []MutationRule

	// QueryMutationRule groups query and mutation rules.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}
)

// EvalQuery evaluates the rules in order. The first non-Skip decision
// wins; an exhausted chain denies.
func (policy QueryPolicy) EvalQuery(ctx context.Context, f *model.FetchSpecification) error {
	for _, rule := range policy {
		switch decision := rule.EvalQuery(ctx, f); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return Denyf("celer/privacy: no rule allowed fetching %q", f.Entity)
}

// EvalMutation evaluates the rules in order. The first non-Skip
// decision wins; an exhausted chain denies.
func (policy MutationPolicy) EvalMutation(ctx context.Context, m *Mutation) error {
	for _, rule := range policy {
		switch decision := rule.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return Denyf("celer/privacy: no rule allowed %s on %q", m.Op, m.Entity)
}

// Policy groups the query and mutation policies of one entity.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery forwards to the query policy.
func (p Policy) EvalQuery(ctx context.Context, f *model.FetchSpecification) error {
	return p.Query.EvalQuery(ctx, f)
}

// EvalMutation forwards to the mutation policy.
func (p Policy) EvalMutation(ctx context.Context, m *Mutation) error {
	return p.Mutation.EvalMutation(ctx, m)
}

// QueryRuleFunc adapts a function to a QueryRule.
type QueryRuleFunc func(context.Context, *model.FetchSpecification) error

// EvalQuery returns f(ctx, fetch).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, fetch *model.FetchSpecification) error {
	return f(ctx, fetch)
}

// MutationRuleFunc adapts a function to a MutationRule.
type MutationRuleFunc func(context.Context, *Mutation) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m *Mutation) error {
	return f(ctx, m)
}

// OnMutationOperation evaluates the rule only for the given operations;
// other operations skip.
func OnMutationOperation(rule MutationRule, mask Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *Mutation) error {
		if m.Op.Is(mask) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// DenyMutationOperationRule denies the given operations and skips the
// rest.
func DenyMutationOperationRule(mask Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, m *Mutation) error {
		return Denyf("celer/privacy: operation %s is not allowed", m.Op)
	})
	return OnMutationOperation(rule, mask)
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying a fixed decision. Policy
// evaluation under it short-circuits to that decision.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Allow) || errors.Is(decision, Deny) {
		return context.WithValue(parent, decisionCtxKey{}, decision)
	}
	return parent
}

// DecisionFromContext returns the decision a context carries.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

// Policies combines the policies of several entities; the first Allow
// short-circuits the rest.
type Policies []Policy

// EvalQuery evaluates the query policies, honoring a context decision.
func (policies Policies) EvalQuery(ctx context.Context, f *model.FetchSpecification) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, policy := range policies {
		switch decision := policy.EvalQuery(ctx, f); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// EvalMutation evaluates the mutation policies, honoring a context
// decision.
func (policies Policies) EvalMutation(ctx context.Context, m *Mutation) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, policy := range policies {
		switch decision := policy.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}
