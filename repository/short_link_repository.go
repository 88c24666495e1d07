package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/url-shortener/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShortLinkRepositoryImpl implements ShortLinkRepository
type ShortLinkRepositoryImpl struct {
	*BaseRepository[models.ShortLink, models.ShortLinkFilter]
}

func NewShortLinkRepository(db *gorm.DB) ShortLinkRepository {
	return &ShortLinkRepositoryImpl{BaseRepository: NewBaseRepository[models.ShortLink, models.ShortLinkFilter](db)}
}

// ByAlias looks up a link by alias including soft-deleted rows, since deleted aliases stay reserved
func (r *ShortLinkRepositoryImpl) ByAlias(ctx context.Context, alias string) (*models.ShortLink, error) {
	filter := models.ShortLinkFilter{Alias: &alias}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ShortLinkRepositoryImpl) ActiveByAlias(ctx context.Context, alias string) (*models.ShortLink, error) {
	filter := models.ShortLinkFilter{Alias: &alias, OnlyActive: true}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ShortLinkRepositoryImpl) ActiveByIDAndOwner(ctx context.Context, id, ownerID uint) (*models.ShortLink, error) {
	db := r.getDB(ctx)
	var row models.ShortLink
	err := db.Where("id = ? AND user_id = ? AND deleted_at IS NULL", id, ownerID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ShortLinkRepositoryImpl) ListActiveByOwner(ctx context.Context, ownerID uint) ([]*models.ShortLink, error) {
	filter := models.ShortLinkFilter{UserID: &ownerID, OnlyActive: true}
	return r.ByFilter(ctx, filter, "created_at DESC, id DESC", 0, 0)
}

// IncrementClicks is a single atomic UPDATE so concurrent visits never lose a count
// and the returned URL is the one the counted row held at that moment.
func (r *ShortLinkRepositoryImpl) IncrementClicks(ctx context.Context, id uint) (string, bool, error) {
	db := r.getDB(ctx)
	var link models.ShortLink
	res := db.Model(&link).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "original_url"}}}).
		Where("id = ? AND deleted_at IS NULL", id).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))
	if res.Error != nil {
		return "", false, fmt.Errorf("failed to increment clicks for short link %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", false, nil
	}
	return link.OriginalURL, true, nil
}

func (r *ShortLinkRepositoryImpl) UpdateOriginalURL(ctx context.Context, id, ownerID uint, originalURL string, updatedAt time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.ShortLink{}).
		Where("id = ? AND user_id = ? AND deleted_at IS NULL", id, ownerID).
		UpdateColumns(map[string]any{
			"original_url": originalURL,
			"updated_at":   updatedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update short link %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ShortLinkRepositoryImpl) SoftDelete(ctx context.Context, id, ownerID uint, deletedAt time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.ShortLink{}).
		Where("id = ? AND user_id = ? AND deleted_at IS NULL", id, ownerID).
		UpdateColumn("deleted_at", deletedAt)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete short link %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ShortLinkRepositoryImpl) applyFilter(db *gorm.DB, f models.ShortLinkFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Alias != nil {
		db = db.Where("alias = ?", *f.Alias)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.OnlyActive {
		db = db.Where("deleted_at IS NULL")
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ShortLinkRepositoryImpl) ByFilter(ctx context.Context, filter models.ShortLinkFilter, orderBy string, limit, offset int) ([]*models.ShortLink, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ShortLink{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ShortLink
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ShortLinkRepositoryImpl) Count(ctx context.Context, filter models.ShortLinkFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ShortLink{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ShortLinkRepositoryImpl) Exists(ctx context.Context, filter models.ShortLinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
