package template

import "time"

// Template is a reusable notification template with {{variable}}
// placeholders. Names are unique; deactivation is the soft-delete path so
// audit rows keep pointing at a resolvable name.
type Template struct {
	ID          int64     `json:"id,omitempty"`
	Name        string    `json:"name"`
	Type        string    `json:"type"` // sms, whatsapp, or email
	Subject     string    `json:"subject,omitempty"`
	Body        string    `json:"body"`
	HTMLBody    string    `json:"html_body,omitempty"`
	HeaderImage string    `json:"header_image,omitempty"`
	Description string    `json:"description,omitempty"`
	Variables   []string  `json:"variables"` // extracted placeholder names, cached
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest is the API payload for creating a template.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type" binding:"required,oneof=sms whatsapp email"`
	Subject     string `json:"subject"`
	Body        string `json:"body" binding:"required"`
	HTMLBody    string `json:"html_body"`
	HeaderImage string `json:"header_image"`
	Description string `json:"description"`
}

// UpdateRequest is the API payload for updating a template. Nil fields are
// left unchanged.
type UpdateRequest struct {
	Subject     *string `json:"subject"`
	Body        *string `json:"body"`
	HTMLBody    *string `json:"html_body"`
	HeaderImage *string `json:"header_image"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// ListFilter narrows the template listing.
type ListFilter struct {
	Type       string
	ActiveOnly bool
}
