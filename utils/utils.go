// Package utils provides utility functions for the application.
package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

// JoinURL joins a base address and a path segment with exactly one slash
func JoinURL(base, segment string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(segment, "/")
}
