// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/url-shortener/app/dto"
	"github.com/amirphl/url-shortener/app/services"
	"github.com/gofiber/fiber/v3"
)

const (
	userIDLocal      = "user_id"
	tokenIDLocal     = "token_id"
	tokenClaimsLocal = "token_claims"

	bearerScheme = "Bearer"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate rejects requests without a valid bearer token
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		return m.authenticate(c, authHeader)
	}
}

// OptionalAuth lets anonymous requests through but still rejects a presented token that does not validate
func (m *AuthMiddleware) OptionalAuth() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Next()
		}

		return m.authenticate(c, authHeader)
	}
}

func (m *AuthMiddleware) authenticate(c fiber.Ctx, authHeader string) error {
	authHeader = strings.TrimSpace(authHeader)
	if strings.EqualFold(authHeader, bearerScheme) {
		return unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
	}

	// Auth schemes are case-insensitive (RFC 7235)
	if len(authHeader) <= len(bearerScheme) || !strings.EqualFold(authHeader[:len(bearerScheme)], bearerScheme) || authHeader[len(bearerScheme)] != ' ' {
		return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
	}

	token := strings.TrimSpace(authHeader[len(bearerScheme)+1:])

	claims, err := m.tokenService.ValidateToken(token)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenExpired):
			return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
		case errors.Is(err, services.ErrTokenInvalid):
			return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
		default:
			return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
		}
	}

	// Store user information in context for downstream handlers
	c.Locals(userIDLocal, claims.UserID)
	c.Locals(tokenIDLocal, claims.TokenID)
	c.Locals(tokenClaimsLocal, claims)

	return c.Next()
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}

// GetUserIDFromContext extracts the authenticated user ID from the request context
func GetUserIDFromContext(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals(userIDLocal).(uint)
	return userID, ok && userID != 0
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(tokenClaimsLocal).(*services.TokenClaims)
	return claims, ok
}
