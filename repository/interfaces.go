// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/url-shortener/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for user accounts
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
}

// ShortLinkRepository defines operations for short links.
// Methods prefixed with Active ignore soft-deleted rows; ByAlias does not.
type ShortLinkRepository interface {
	Repository[models.ShortLink, models.ShortLinkFilter]
	ByAlias(ctx context.Context, alias string) (*models.ShortLink, error)
	ActiveByAlias(ctx context.Context, alias string) (*models.ShortLink, error)
	ActiveByIDAndOwner(ctx context.Context, id, ownerID uint) (*models.ShortLink, error)
	ListActiveByOwner(ctx context.Context, ownerID uint) ([]*models.ShortLink, error)
	// IncrementClicks adds one click to an active link and returns its current original URL.
	// ok is false when no active row matched.
	IncrementClicks(ctx context.Context, id uint) (originalURL string, ok bool, err error)
	UpdateOriginalURL(ctx context.Context, id, ownerID uint, originalURL string, updatedAt time.Time) (bool, error)
	SoftDelete(ctx context.Context, id, ownerID uint, deletedAt time.Time) (bool, error)
}
