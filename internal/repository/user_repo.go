package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/challenge-api/internal/models"
)

// UserRepository resolves payout recipients.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindActiveByID(ctx context.Context, id uint) (models.User, error)
	FindActiveByUsername(ctx context.Context, username string) (models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository instantiates the repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindActiveByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("active = ?", true).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindActiveByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ?", strings.TrimSpace(username)).
		Where("active = ?", true).
		First(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
