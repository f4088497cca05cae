package oauth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/authgrid/internal/store"
)

// ScopeRegistry resolves requested scope strings against the registered set.
type ScopeRegistry struct {
	store store.Store
}

func NewScopeRegistry(s store.Store) *ScopeRegistry {
	return &ScopeRegistry{store: s}
}

// Resolve turns a space-delimited scope request into the granted set. An
// empty request yields the defaults; any unknown name is invalid_scope.
func (r *ScopeRegistry) Resolve(ctx context.Context, requested string) ([]string, error) {
	names := strings.Fields(requested)
	if len(names) == 0 {
		defaults, err := r.store.Scopes().Defaults(ctx)
		if err != nil {
			return nil, ErrServerError
		}
		out := make([]string, 0, len(defaults))
		for _, s := range defaults {
			out = append(out, s.Name)
		}
		return out, nil
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, err := r.store.Scopes().GetByName(ctx, name); err != nil {
			return nil, ErrInvalidScope
		}
		out = append(out, name)
	}
	return out, nil
}

// List returns every registered scope name, ordered.
func (r *ScopeRegistry) List(ctx context.Context) ([]string, error) {
	all, err := r.store.Scopes().List(ctx)
	if err != nil {
		return nil, ErrServerError
	}
	out := make([]string, 0, len(all))
	for _, s := range all {
		out = append(out, s.Name)
	}
	return out, nil
}

// Narrow restricts a granted set to a requested subset. Empty request keeps
// the grant as-is; any name outside the grant is invalid_scope. Never widens.
func (r *ScopeRegistry) Narrow(granted, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return granted, nil
	}
	have := make(map[string]bool, len(granted))
	for _, s := range granted {
		have[s] = true
	}
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if !have[s] {
			return nil, ErrInvalidScope
		}
		out = append(out, s)
	}
	return out, nil
}
