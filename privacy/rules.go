package privacy

import (
	"context"

	"github.com/syssam/celer/model"
	"github.com/syssam/celer/qualifier"
)

// Viewer describes the identity an operation runs on behalf of.
type Viewer interface {
	// ID returns the viewer identifier.
	ID() string
	// Roles returns the viewer's role names.
	Roles() []string
	// Tenant returns the tenant the viewer belongs to. Empty means
	// none.
	Tenant() string
}

type viewerCtxKey struct{}

// WithViewer returns a context carrying the viewer.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, v)
}

// ViewerFromContext returns the context's viewer, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a plain Viewer implementation.
type SimpleViewer struct {
	UserID   string
	UserRole []string
	TenantID string
}

// ID returns the viewer identifier.
func (v *SimpleViewer) ID() string { return v.UserID }

// Roles returns the viewer's role names.
func (v *SimpleViewer) Roles() []string { return v.UserRole }

// Tenant returns the viewer's tenant.
func (v *SimpleViewer) Tenant() string { return v.TenantID }

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalQuery(context.Context, *model.FetchSpecification) error {
	return f.decision
}

func (f fixedDecision) EvalMutation(context.Context, *Mutation) error {
	return f.decision
}

// AlwaysAllowRule returns a rule that always allows.
func AlwaysAllowRule() QueryMutationRule { return fixedDecision{Allow} }

// AlwaysDenyRule returns a rule that always denies.
func AlwaysDenyRule() QueryMutationRule { return fixedDecision{Deny} }

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalQuery(ctx context.Context, _ *model.FetchSpecification) error {
	return c.eval(ctx)
}

func (c contextDecision) EvalMutation(ctx context.Context, _ *Mutation) error {
	return c.eval(ctx)
}

// ContextQueryMutationRule creates a rule from a context evaluation
// function. A nil return is treated as Skip.
func ContextQueryMutationRule(eval func(context.Context) error) QueryMutationRule {
	return contextDecision{eval}
}

// DenyIfNoViewer denies operations running without a viewer.
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("celer/privacy: viewer is missing")
		}
		return Skip
	})
}

// HasRole skips for viewers holding the role and denies everyone else.
func HasRole(role string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		v := ViewerFromContext(ctx)
		if v == nil {
			return Denyf("celer/privacy: viewer is missing")
		}
		for _, r := range v.Roles() {
			if r == role {
				return Skip
			}
		}
		return Denyf("celer/privacy: viewer lacks role %q", role)
	})
}

// FilterFunc returns the qualifier to AND into the operation, or nil
// for none.
type FilterFunc func(ctx context.Context) qualifier.Qualifier

// FilterRule narrows fetches and mutations with a qualifier and skips,
// leaving the decision to later rules. It is the row-level-security
// building block: the operation proceeds, but only over rows the
// qualifier admits.
func FilterRule(filter FilterFunc) QueryMutationRule {
	return filterRule{filter}
}

type filterRule struct {
	filter FilterFunc
}

func (f filterRule) EvalQuery(ctx context.Context, fetch *model.FetchSpecification) error {
	if q := f.filter(ctx); q != nil {
		fetch.Qualifier = conjoin(fetch.Qualifier, q)
	}
	return Skip
}

func (f filterRule) EvalMutation(ctx context.Context, m *Mutation) error {
	// Creates have no row scope to narrow.
	if m.Op.Is(OpCreate) {
		return Skip
	}
	if q := f.filter(ctx); q != nil {
		m.Qualifier = conjoin(m.Qualifier, q)
	}
	return Skip
}

func conjoin(base, extra qualifier.Qualifier) qualifier.Qualifier {
	if base == nil {
		return extra
	}
	return qualifier.And(base, extra)
}

// TenantRule scopes every fetch and mutation to the viewer's tenant by
// qualifying the given key. Operations without a viewer or without a
// tenant are denied.
func TenantRule(key string) QueryMutationRule {
	return tenantRule{key}
}

type tenantRule struct {
	key string
}

func (t tenantRule) qualify(ctx context.Context) (qualifier.Qualifier, error) {
	v := ViewerFromContext(ctx)
	if v == nil {
		return nil, Denyf("celer/privacy: viewer is missing")
	}
	if v.Tenant() == "" {
		return nil, Denyf("celer/privacy: viewer has no tenant")
	}
	return qualifier.EQ(t.key, v.Tenant()), nil
}

func (t tenantRule) EvalQuery(ctx context.Context, fetch *model.FetchSpecification) error {
	q, err := t.qualify(ctx)
	if err != nil {
		return err
	}
	fetch.Qualifier = conjoin(fetch.Qualifier, q)
	return Skip
}

func (t tenantRule) EvalMutation(ctx context.Context, m *Mutation) error {
	q, err := t.qualify(ctx)
	if err != nil {
		return err
	}
	if !m.Op.Is(OpCreate) {
		m.Qualifier = conjoin(m.Qualifier, q)
	}
	return Skip
}
