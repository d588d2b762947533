package dto

import (
	"time"

	"github.com/lumenchat/lumen-go-api/internal/models"
)

// ChatSendRequest is the payload clients push over the websocket to send a
// text message into the open conversation.
type ChatSendRequest struct {
	Text      string `json:"text" validate:"required,min=1,max=4000"`
	ReplyToID *uint  `json:"reply_to_id,omitempty" validate:"omitempty"`
}

// DirectMessageResponse is the serialized representation of a direct message.
type DirectMessageResponse struct {
	ID         uint      `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	Attachment string    `json:"attachment,omitempty"`
	ReplyToID  *uint     `json:"reply_to_id,omitempty"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatSnapshot carries the full ordered message list of a conversation.
// Feed deliveries always replace the client's local list, never patch it.
type ChatSnapshot struct {
	ChatID   string                  `json:"chat_id"`
	Messages []DirectMessageResponse `json:"messages"`
}

// NewDirectMessageResponse converts a model into a DTO.
func NewDirectMessageResponse(message models.DirectMessage) DirectMessageResponse {
	return DirectMessageResponse{
		ID:         message.ID,
		ChatID:     message.ChatID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Text:       message.Text,
		Attachment: message.Attachment,
		ReplyToID:  message.ReplyToID,
		IsRead:     message.IsRead,
		CreatedAt:  message.CreatedAt,
	}
}

// NewDirectMessageResponseSlice converts a slice of models into DTOs.
func NewDirectMessageResponseSlice(messages []models.DirectMessage) []DirectMessageResponse {
	out := make([]DirectMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewDirectMessageResponse(message))
	}
	return out
}
