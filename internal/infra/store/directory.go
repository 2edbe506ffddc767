package store

import (
	"context"
	"encoding/json"
	"fmt"

	"outreach/internal/domain/notification"

	supa "github.com/supabase-community/supabase-go"
)

var _ notification.Directory = (*SupabaseDirectory)(nil)

// SupabaseDirectory resolves people from the programme's Supabase tables.
// Lookups are best-effort; callers treat empty results as "unknown" rather
// than errors.
type SupabaseDirectory struct {
	client *supa.Client
}

// NewSupabaseDirectory creates a new Supabase-backed directory.
func NewSupabaseDirectory(supabaseURL, serviceKey string) (*SupabaseDirectory, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseDirectory{client: client}, nil
}

type nameRow struct {
	Name string `json:"name"`
}

type userRow struct {
	Email string `json:"email"`
}

// DisplayName returns the recorded name for an email address, consulting
// converts first, then counsellees. Returns "" when neither table knows the
// address.
func (d *SupabaseDirectory) DisplayName(ctx context.Context, email string) (string, error) {
	for _, table := range []string{"converts", "counsellees"} {
		name, err := d.lookupName(table, email)
		if err != nil {
			return "", err
		}
		if name != "" {
			return name, nil
		}
	}
	return "", nil
}

// UserEmail returns the email for an authenticated user ID, or "" when the
// user is unknown.
func (d *SupabaseDirectory) UserEmail(ctx context.Context, userID string) (string, error) {
	data, _, err := d.client.From("users").Select("email", "exact", false).Eq("id", userID).Execute()
	if err != nil {
		return "", fmt.Errorf("fetching user email: %w", err)
	}

	var rows []userRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("parsing user email: %w", err)
	}

	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Email, nil
}

func (d *SupabaseDirectory) lookupName(table, email string) (string, error) {
	data, _, err := d.client.From(table).Select("name", "exact", false).Eq("email", email).Execute()
	if err != nil {
		return "", fmt.Errorf("fetching name from %s: %w", table, err)
	}

	var rows []nameRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("parsing name from %s: %w", table, err)
	}

	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Name, nil
}
