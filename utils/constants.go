package utils

import (
	"time"
)

// Token constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour
)

// Password hashing constants
const (
	// BcryptCost is the default bcrypt work factor for stored passwords
	BcryptCost = 10
)

// Alias constants
const (
	// AliasRandomBytes is the number of random bytes drawn per alias candidate
	AliasRandomBytes = 3

	// AliasLength is the length of every generated alias
	AliasLength = 6
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Cache key fragments
const (
	// ShortLinkCacheKey prefixes alias resolution entries
	ShortLinkCacheKey = "short_link:alias:"
)
