package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"outreach/internal/domain/template"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const templateTable = "notification_templates"

var _ template.Store = (*SupabaseTemplateStore)(nil)

// SupabaseTemplateStore implements template.Store using the Supabase Go SDK.
type SupabaseTemplateStore struct {
	client *supa.Client
}

// NewSupabaseTemplateStore creates a new Supabase-backed template store.
func NewSupabaseTemplateStore(supabaseURL, serviceKey string) (*SupabaseTemplateStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseTemplateStore{client: client}, nil
}

// templateRow is the internal representation for Supabase PostgREST.
// variables is a JSON text column, serialized here at the store boundary.
type templateRow struct {
	ID          int64   `json:"id,omitempty"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Subject     *string `json:"subject,omitempty"`
	Body        string  `json:"body"`
	HTMLBody    *string `json:"html_body,omitempty"`
	HeaderImage *string `json:"header_image,omitempty"`
	Description *string `json:"description,omitempty"`
	Variables   *string `json:"variables,omitempty"`
	IsActive    bool    `json:"is_active"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// Create inserts a new template.
func (s *SupabaseTemplateStore) Create(ctx context.Context, t *template.Template) error {
	row, err := templateToRow(t)
	if err != nil {
		return err
	}

	var results []templateRow
	data, _, err := s.client.From(templateTable).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting template: %w", err)
	}

	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}

	if len(results) > 0 {
		t.ID = results[0].ID
		if results[0].CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339Nano, results[0].CreatedAt); err == nil {
				t.CreatedAt = ts
			}
		}
	}

	return nil
}

// GetByName retrieves a template by name regardless of active state.
// Returns nil, nil if no template has the name.
func (s *SupabaseTemplateStore) GetByName(ctx context.Context, name string) (*template.Template, error) {
	data, _, err := s.client.From(templateTable).Select("*", "exact", false).Eq("name", name).Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching template: %w", err)
	}

	var rows []templateRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rowToTemplate(&rows[0]), nil
}

// List retrieves templates matching the filter, newest first.
func (s *SupabaseTemplateStore) List(ctx context.Context, filter template.ListFilter) ([]*template.Template, error) {
	query := s.client.From(templateTable).Select("*", "exact", false)

	if filter.Type != "" {
		query = query.Eq("type", filter.Type)
	}
	if filter.ActiveOnly {
		query = query.Eq("is_active", "true")
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	var rows []templateRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing template list: %w", err)
	}

	templates := make([]*template.Template, len(rows))
	for i := range rows {
		templates[i] = rowToTemplate(&rows[i])
	}

	return templates, nil
}

// Update persists changed fields of an existing template, keyed by name.
func (s *SupabaseTemplateStore) Update(ctx context.Context, t *template.Template) error {
	row, err := templateToRow(t)
	if err != nil {
		return err
	}
	row.UpdatedAt = t.UpdatedAt.UTC().Format(time.RFC3339Nano)

	_, _, err = s.client.From(templateTable).Update(row, "", "").Eq("name", t.Name).Execute()
	if err != nil {
		return fmt.Errorf("updating template: %w", err)
	}

	return nil
}

// templateToRow converts a Template to its PostgREST representation.
func templateToRow(t *template.Template) (*templateRow, error) {
	row := &templateRow{
		Name:     t.Name,
		Type:     t.Type,
		Body:     t.Body,
		IsActive: t.IsActive,
	}

	setOptional(&row.Subject, t.Subject)
	setOptional(&row.HTMLBody, t.HTMLBody)
	setOptional(&row.HeaderImage, t.HeaderImage)
	setOptional(&row.Description, t.Description)

	if len(t.Variables) > 0 {
		encoded, err := json.Marshal(t.Variables)
		if err != nil {
			return nil, fmt.Errorf("encoding template variables: %w", err)
		}
		vars := string(encoded)
		row.Variables = &vars
	}

	return row, nil
}

// rowToTemplate converts a templateRow to a Template.
func rowToTemplate(row *templateRow) *template.Template {
	t := &template.Template{
		ID:       row.ID,
		Name:     row.Name,
		Type:     row.Type,
		Body:     row.Body,
		IsActive: row.IsActive,
	}

	if row.Subject != nil {
		t.Subject = *row.Subject
	}
	if row.HTMLBody != nil {
		t.HTMLBody = *row.HTMLBody
	}
	if row.HeaderImage != nil {
		t.HeaderImage = *row.HeaderImage
	}
	if row.Description != nil {
		t.Description = *row.Description
	}
	if row.Variables != nil && *row.Variables != "" {
		_ = json.Unmarshal([]byte(*row.Variables), &t.Variables)
	}

	if row.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
			t.CreatedAt = ts
		}
	}
	if row.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, row.UpdatedAt); err == nil {
			t.UpdatedAt = ts
		}
	}

	return t
}
