package store

import "time"

// GetString returns a string value from frontmatter.
func GetString(fm map[string]any, key string) string {
	if v, ok := fm[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetField sets a key in frontmatter, creating the map if nil.
func SetField(fm map[string]any, key string, value any) map[string]any {
	if fm == nil {
		fm = make(map[string]any)
	}
	fm[key] = value
	return fm
}

// FormatTime formats a time for frontmatter.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
