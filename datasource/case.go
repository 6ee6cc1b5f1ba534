package datasource

import (
	"strings"
	"unicode"
)

// toSnake converts s to snake_case using ASCII-aware rules. Used to derive
// persisted-state container names (e.g. "{path}_items") from an entity path string
// (the SQL store passes SQLConfig.EntityPath) — we keep this local so we can aggressively strip punctuation (slashes,
// braces from path templates) that would otherwise produce container names a SQL
// backend rejects as identifiers.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case unicode.IsUpper(r):
			if b.Len() > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if (unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower) && !lastUnderscore {
					b.WriteByte('_')
					lastUnderscore = true
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false

		case unicode.IsLower(r):
			b.WriteRune(r)
			lastUnderscore = false

		case unicode.IsDigit(r):
			if b.Len() > 0 {
				prev := runes[i-1]
				if !unicode.IsDigit(prev) && prev != '_' && !lastUnderscore {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r)
			lastUnderscore = false

		case r == '_':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}

		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.Trim(b.String(), "_")
}

// ContainerName derives a persisted-state container name from an entity path or list
// URL and a logical suffix (e.g. "items", "requestCache").
func ContainerName(listURL, suffix string) string {
	return toSnake(listURL) + "_" + suffix
}
