// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// FormatRFC3339 renders t in UTC using RFC3339
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
