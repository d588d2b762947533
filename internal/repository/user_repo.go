package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenchat/lumen-go-api/internal/models"
)

// UserRepository persists mirrored identity-provider profiles.
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateTheme(ctx context.Context, id, theme string) error
	UpdatePhotoURL(ctx context.Context, id, photoURL string) error
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Upsert inserts the profile or merges non-empty incoming fields into the
// existing row, matching the provider's merge-on-sign-in behaviour.
func (r *userRepository) Upsert(ctx context.Context, user *models.User) error {
	assignments := map[string]interface{}{}
	if user.Name != "" {
		assignments["name"] = user.Name
	}
	if user.Email != "" {
		assignments["email"] = user.Email
	}
	if user.PhotoURL != "" {
		assignments["photo_url"] = user.PhotoURL
	}

	if len(assignments) == 0 {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(user).Error
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(user).Error
}

func (r *userRepository) Get(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateTheme(ctx context.Context, id, theme string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("theme", theme).Error
}

func (r *userRepository) UpdatePhotoURL(ctx context.Context, id, photoURL string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("photo_url", photoURL).Error
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error
}
