package util

import "strings"

// StripDots removes every dot from a version string, e.g. "1.75.0" -> "1750".
func StripDots(s string) string {
	return strings.ReplaceAll(s, ".", "")
}

func AsPtr[T any](v T) *T {
	return &v
}
