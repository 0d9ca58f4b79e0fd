package validate

import "strings"

// Required reports whether value has any non-space content.
func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// RequiredAll reports whether every value passes Required.
func RequiredAll(values ...string) bool {
	for _, v := range values {
		if !Required(v) {
			return false
		}
	}
	return len(values) > 0
}
