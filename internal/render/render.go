// Package render is a dependency-free text substitution engine for
// {{variable}} placeholders in notification templates. It performs no I/O and
// holds no state; all functions are safe for concurrent use.
package render

import "regexp"

// placeholderPattern matches {{identifier}} tokens. Identifiers are word
// characters only — no dots, brackets, or whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces every {{key}} occurrence with the corresponding value.
// Placeholders with no matching variable are left verbatim, so a partial
// variable set still produces usable output. Substitution is single-pass:
// values that themselves contain placeholder syntax are not re-expanded.
func Render(template string, variables map[string]string) string {
	if template == "" {
		return ""
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})
}

// ExtractVariables returns the unique variable names referenced by a template,
// in order of first appearance.
func ExtractVariables(template string) []string {
	if template == "" {
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if name := match[1]; !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// ValidateVariables reports whether every variable the template references is
// present in the provided set, returning the missing names if not.
func ValidateVariables(template string, provided map[string]string) (bool, []string) {
	var missing []string
	for _, name := range ExtractVariables(template) {
		if _, ok := provided[name]; !ok {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}
