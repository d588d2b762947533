package repository

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/lumenchat/lumen-go-api/internal/models"
)

// GroupRepository persists group conversations and their membership.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	Get(ctx context.Context, id uint) (models.Group, error)
	ListVisible(ctx context.Context, userID string) ([]models.Group, error)
	IsMember(ctx context.Context, id uint, userID string) (bool, error)
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository constructs a group repository backed by GORM.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) Get(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// ListVisible returns the groups the user belongs to or created. The
// membership check decodes the JSON column in Go rather than relying on a
// dialect-specific JSON containment operator, so sqlite test databases
// behave the same as postgres.
func (r *groupRepository) ListVisible(ctx context.Context, userID string) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&groups).Error; err != nil {
		return nil, err
	}

	visible := make([]models.Group, 0, len(groups))
	for _, group := range groups {
		if group.CreatorID == userID || memberOf(group, userID) {
			visible = append(visible, group)
		}
	}

	return visible, nil
}

func (r *groupRepository) IsMember(ctx context.Context, id uint, userID string) (bool, error) {
	group, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return group.CreatorID == userID || memberOf(group, userID), nil
}

func memberOf(group models.Group, userID string) bool {
	var members []string
	if len(group.Members) > 0 {
		if err := json.Unmarshal(group.Members, &members); err != nil {
			return false
		}
	}
	for _, member := range members {
		if member == userID {
			return true
		}
	}
	return false
}
