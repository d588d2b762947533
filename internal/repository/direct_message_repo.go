package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lumenchat/lumen-go-api/internal/models"
)

// DirectMessageRepository is the store adapter for one-to-one messages.
// Every message is its own row, so concurrent sends never overwrite each
// other and ordering falls out of the server-assigned timestamps.
type DirectMessageRepository interface {
	Append(ctx context.Context, message *models.DirectMessage) error
	ListByChat(ctx context.Context, chatID string) ([]models.DirectMessage, error)
	MarkRead(ctx context.Context, id uint, readerID string) error
	CountUnread(ctx context.Context, chatID, receiverID string) (int64, error)
	ListAll(ctx context.Context, limit int) ([]models.DirectMessage, error)
	Delete(ctx context.Context, id uint) error
	DeleteBySender(ctx context.Context, senderID string) error
}

type directMessageRepository struct {
	db *gorm.DB
}

// NewDirectMessageRepository constructs a direct-message repository backed by GORM.
func NewDirectMessageRepository(db *gorm.DB) DirectMessageRepository {
	return &directMessageRepository{db: db}
}

func (r *directMessageRepository) Append(ctx context.Context, message *models.DirectMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListByChat returns the conversation in creation order. Ties on the
// timestamp fall back to insertion order via the autoincrement id.
func (r *directMessageRepository) ListByChat(ctx context.Context, chatID string) ([]models.DirectMessage, error) {
	var messages []models.DirectMessage
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flips is_read for the recipient. Idempotent: a second call on an
// already-read message matches zero rows and succeeds. The sender condition
// keeps a client from marking its own messages.
func (r *directMessageRepository) MarkRead(ctx context.Context, id uint, readerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.DirectMessage{}).
		Where("id = ? AND sender_id <> ? AND is_read = ?", id, readerID, false).
		Update("is_read", true).Error
}

func (r *directMessageRepository) CountUnread(ctx context.Context, chatID, receiverID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DirectMessage{}).
		Where("chat_id = ? AND receiver_id = ? AND is_read = ?", chatID, receiverID, false).
		Count(&count).Error
	return count, err
}

func (r *directMessageRepository) ListAll(ctx context.Context, limit int) ([]models.DirectMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var messages []models.DirectMessage
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *directMessageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.DirectMessage{}, id).Error
}

func (r *directMessageRepository) DeleteBySender(ctx context.Context, senderID string) error {
	return r.db.WithContext(ctx).Where("sender_id = ?", senderID).Delete(&models.DirectMessage{}).Error
}
