package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		variables map[string]string
		want      string
	}{
		{
			name:      "all variables resolved",
			template:  "Hello {{name}}, your session is on {{date}}",
			variables: map[string]string{"name": "John", "date": "Dec 26"},
			want:      "Hello John, your session is on Dec 26",
		},
		{
			name:      "unresolved placeholder left verbatim",
			template:  "Hello {{name}}, today is {{day}}",
			variables: map[string]string{"name": "Ada"},
			want:      "Hello Ada, today is {{day}}",
		},
		{
			name:      "empty template",
			template:  "",
			variables: map[string]string{"name": "Ada"},
			want:      "",
		},
		{
			name:      "no placeholders",
			template:  "plain text",
			variables: map[string]string{"name": "Ada"},
			want:      "plain text",
		},
		{
			name:      "repeated placeholder",
			template:  "{{name}} and {{name}}",
			variables: map[string]string{"name": "Ada"},
			want:      "Ada and Ada",
		},
		{
			name:      "extra variables ignored",
			template:  "Hello {{name}}",
			variables: map[string]string{"name": "Ada", "day": "Friday"},
			want:      "Hello Ada",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.template, tt.variables))
		})
	}
}

func TestRenderIdempotent(t *testing.T) {
	// Once all placeholders are resolved, rendering the output again must be
	// a no-op, even when a substituted value contains literal brace syntax.
	variables := map[string]string{"name": "Ada", "note": "literal {{name}} kept"}

	first := Render("Hi {{name}}: {{note}}", map[string]string{"name": "Ada", "note": "done"})
	assert.Equal(t, first, Render(first, variables))

	// A value containing placeholder syntax is not re-expanded in the same pass.
	out := Render("{{note}}", map[string]string{"note": "{{name}}", "name": "Ada"})
	assert.Equal(t, "{{name}}", out)
}

func TestExtractVariables(t *testing.T) {
	assert.Equal(t, []string{"name", "date"}, ExtractVariables("Hello {{name}}, on {{date}} ({{name}})"))
	assert.Nil(t, ExtractVariables(""))
	assert.Nil(t, ExtractVariables("no placeholders here"))

	// Dotted or spaced identifiers are not placeholders.
	assert.Nil(t, ExtractVariables("{{user.name}} {{ spaced }}"))
}

func TestValidateVariables(t *testing.T) {
	ok, missing := ValidateVariables("Hi {{name}}, {{date}}", map[string]string{"name": "Ada"})
	assert.False(t, ok)
	assert.Equal(t, []string{"date"}, missing)

	ok, missing = ValidateVariables("Hi {{name}}", map[string]string{"name": "Ada", "extra": "x"})
	assert.True(t, ok)
	assert.Empty(t, missing)
}
