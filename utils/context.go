package utils

type contextKey string

// Request-scoped context keys set by handlers
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)
