// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// RegisterRequest represents the registration payload
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=6,max=72" example:"secret1"`
}

// RegisterResponse represents a newly created account
type RegisterResponse struct {
	ID        uint      `json:"id" example:"1"`
	Email     string    `json:"email" example:"user@example.com"`
	CreatedAt time.Time `json:"createdAt" example:"2025-07-26T14:00:00Z"`
}
