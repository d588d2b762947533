package models

import (
	"time"

	"gorm.io/datatypes"
)

// DirectMessage is a single one-to-one chat message. One row per message;
// IsRead is the only field mutated after creation, and only by the
// recipient's client.
type DirectMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatID     string    `gorm:"size:130;index" json:"chat_id"`
	SenderID   string    `gorm:"size:64;index" json:"sender_id"`
	ReceiverID string    `gorm:"size:64;index" json:"receiver_id"`
	Text       string    `gorm:"type:text" json:"text"`
	Attachment string    `gorm:"type:text" json:"attachment,omitempty"`
	ReplyToID  *uint     `json:"reply_to_id,omitempty"`
	IsRead     bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Group is a named multi-user conversation. Membership is stored as a JSON
// array of provider uids; the creator is always a member.
type Group struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	CreatorID string         `gorm:"size:64;index" json:"creator_id"`
	Members   datatypes.JSON `gorm:"type:json" json:"members"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// GroupMessage is one row per group message. Group reads are not tracked
// per message, so there is no IsRead here.
type GroupMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	GroupID    uint      `gorm:"index;not null" json:"group_id"`
	SenderID   string    `gorm:"size:64;index" json:"sender_id"`
	Text       string    `gorm:"type:text" json:"text"`
	Attachment string    `gorm:"type:text" json:"attachment,omitempty"`
	ReplyToID  *uint     `json:"reply_to_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
