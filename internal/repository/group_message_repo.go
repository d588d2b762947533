package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lumenchat/lumen-go-api/internal/models"
)

// GroupMessageRepository stores group messages one row per message, keyed by
// group id and ordered by server timestamp. Concurrent senders insert
// independent rows, so no message can overwrite another.
type GroupMessageRepository interface {
	Append(ctx context.Context, message *models.GroupMessage) error
	ListByGroup(ctx context.Context, groupID uint) ([]models.GroupMessage, error)
	DeleteBySender(ctx context.Context, senderID string) error
}

type groupMessageRepository struct {
	db *gorm.DB
}

// NewGroupMessageRepository constructs a group-message repository backed by GORM.
func NewGroupMessageRepository(db *gorm.DB) GroupMessageRepository {
	return &groupMessageRepository{db: db}
}

func (r *groupMessageRepository) Append(ctx context.Context, message *models.GroupMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *groupMessageRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.GroupMessage, error) {
	var messages []models.GroupMessage
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *groupMessageRepository) DeleteBySender(ctx context.Context, senderID string) error {
	return r.db.WithContext(ctx).Where("sender_id = ?", senderID).Delete(&models.GroupMessage{}).Error
}
