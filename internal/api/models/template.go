package models

import "regexp"

var templateVariable = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_$]+)\s*\}\}`)

// TemplateVariables returns the distinct {{ name }} references in text, in first-seen order.
func TemplateVariables(text string) []string {
	matches := templateVariable.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		vars = append(vars, m[1])
	}
	return vars
}
