// internal/app/system/normalize/normalize.go
package normalize

import "strings"

// Email trims and lowercases an address.
func Email(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Name trims surrounding whitespace and collapses internal runs of spaces.
// Case is preserved.
func Name(s string) string { return strings.Join(strings.Fields(s), " ") }

// Role trims and lowercases a role.
func Role(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Status trims and lowercases a status.
func Status(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Confidentiality trims and lowercases a forum confidentiality value.
func Confidentiality(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// QueryParam trims a query string value, preserving case.
func QueryParam(s string) string { return strings.TrimSpace(s) }
