package template

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"outreach/internal/common"
	"outreach/internal/render"
)

// Service manages the template catalogue. The notification core consumes
// templates read-only through its own TemplateSource interface; all writes
// come through here.
type Service struct {
	store Store
}

// NewService creates a new template service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create registers a new template, caching the extracted variable names.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Template, error) {
	existing, err := s.store.GetByName(ctx, req.Name)
	if err != nil {
		return nil, fmt.Errorf("checking template name: %w", err)
	}
	if existing != nil {
		return nil, common.NewConflictError(fmt.Sprintf("template '%s' already exists", req.Name))
	}

	t := &Template{
		Name:        req.Name,
		Type:        req.Type,
		Subject:     req.Subject,
		Body:        req.Body,
		HTMLBody:    req.HTMLBody,
		HeaderImage: req.HeaderImage,
		Description: req.Description,
		Variables:   extractAllVariables(req.Subject, req.Body, req.HTMLBody),
		IsActive:    true,
	}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("creating template: %w", err)
	}

	slog.Info("template created", "name", t.Name, "type", t.Type, "variables", t.Variables)
	return t, nil
}

// Get retrieves a template by name.
func (s *Service) Get(ctx context.Context, name string) (*Template, error) {
	t, err := s.store.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetching template: %w", err)
	}
	if t == nil {
		return nil, common.NewNotFoundError("template", name)
	}
	return t, nil
}

// GetActiveByName returns an active template by name, or nil, nil when the
// name is unknown or the template is deactivated. Satisfies the notification
// core's TemplateSource contract.
func (s *Service) GetActiveByName(ctx context.Context, name string) (*Template, error) {
	t, err := s.store.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.IsActive {
		return nil, nil
	}
	return t, nil
}

// List retrieves templates, optionally narrowed by type and active state.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Template, error) {
	templates, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return templates, nil
}

// Update modifies a template in place. Changing body content re-extracts the
// cached variable list.
func (s *Service) Update(ctx context.Context, name string, req *UpdateRequest) (*Template, error) {
	t, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if req.Subject != nil {
		t.Subject = *req.Subject
	}
	if req.Body != nil {
		t.Body = *req.Body
	}
	if req.HTMLBody != nil {
		t.HTMLBody = *req.HTMLBody
	}
	if req.HeaderImage != nil {
		t.HeaderImage = *req.HeaderImage
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	t.Variables = extractAllVariables(t.Subject, t.Body, t.HTMLBody)
	t.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("updating template: %w", err)
	}
	return t, nil
}

// Deactivate soft-deletes a template so templated sends stop resolving it.
func (s *Service) Deactivate(ctx context.Context, name string) error {
	inactive := false
	_, err := s.Update(ctx, name, &UpdateRequest{IsActive: &inactive})
	return err
}

// extractAllVariables merges the unique placeholder names across all
// renderable parts of a template.
func extractAllVariables(parts ...string) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, part := range parts {
		for _, name := range render.ExtractVariables(part) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
