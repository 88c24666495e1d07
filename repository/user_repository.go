package repository

import (
	"context"

	"github.com/amirphl/url-shortener/models"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements UserRepository
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{BaseRepository: NewBaseRepository[models.User, models.UserFilter](db)}
}

func (r *UserRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.User, error) {
	filter := models.UserFilter{Email: &email}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *UserRepositoryImpl) applyFilter(db *gorm.DB, f models.UserFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *UserRepositoryImpl) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.User{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.User
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *UserRepositoryImpl) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.User{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *UserRepositoryImpl) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
