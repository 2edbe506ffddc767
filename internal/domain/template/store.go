package template

import "context"

// Store defines the contract for persisting templates.
// Implementations live in infra/store/.
type Store interface {
	// Create inserts a new template.
	Create(ctx context.Context, t *Template) error

	// GetByName retrieves a template by name regardless of active state.
	// Returns nil, nil if no template has the name.
	GetByName(ctx context.Context, name string) (*Template, error)

	// List retrieves templates matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Template, error)

	// Update persists changed fields of an existing template.
	Update(ctx context.Context, t *Template) error
}
