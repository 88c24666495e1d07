package dto

import "time"

// CreateShortURLRequest is the payload for shortening a URL
type CreateShortURLRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,http_url,max=2048" example:"https://www.google.com"`
}

// CreateShortURLResponse returns the public short URL
type CreateShortURLResponse struct {
	ShortURL string `json:"shortUrl" example:"http://localhost:8080/abc123"`
}

// UpdateShortURLRequest replaces the target of an owned link
type UpdateShortURLRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,http_url,max=2048" example:"https://www.example.org"`
}

// LinkSummary is one owned link as listed to its owner
type LinkSummary struct {
	ID          uint      `json:"id" example:"1"`
	OriginalURL string    `json:"originalUrl" example:"https://www.google.com/my-site"`
	ShortURL    string    `json:"shortUrl" example:"http://localhost:8080/abc123"`
	Clicks      int64     `json:"clicks" example:"42"`
	CreatedAt   time.Time `json:"createdAt" example:"2025-07-26T14:00:00Z"`
}

// MessageResponse is returned by mutations that carry no payload
type MessageResponse struct {
	Message string `json:"message" example:"URL updated successfully"`
}
