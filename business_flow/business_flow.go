package businessflow

import (
	"github.com/amirphl/url-shortener/app/dto"
	"github.com/amirphl/url-shortener/models"
	"github.com/amirphl/url-shortener/utils"
)

// ToRegisterResponse converts a user into the registration payload
func ToRegisterResponse(user models.User) *dto.RegisterResponse {
	return &dto.RegisterResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.UTC(),
	}
}

// ToLinkSummary converts a short link into its owner-facing projection
func ToLinkSummary(link models.ShortLink, baseURL string) dto.LinkSummary {
	return dto.LinkSummary{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		ShortURL:    utils.JoinURL(baseURL, link.Alias),
		Clicks:      link.Clicks,
		CreatedAt:   link.CreatedAt.UTC(),
	}
}
