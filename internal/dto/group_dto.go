package dto

import (
	"encoding/json"
	"time"

	"github.com/lumenchat/lumen-go-api/internal/models"
)

// GroupCreateRequest is the payload to create a group conversation.
type GroupCreateRequest struct {
	Name    string   `json:"name" validate:"omitempty,max=255"`
	Members []string `json:"members" validate:"required,min=1,dive,required,max=64"`
}

// GroupResponse describes a group returned by the API.
type GroupResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creator_id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupMessageResponse is the serialized representation of a group message.
type GroupMessageResponse struct {
	ID         uint      `json:"id"`
	GroupID    uint      `json:"group_id"`
	SenderID   string    `json:"sender_id"`
	Text       string    `json:"text"`
	Attachment string    `json:"attachment,omitempty"`
	ReplyToID  *uint     `json:"reply_to_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// GroupSnapshot carries the full ordered message list of a group.
type GroupSnapshot struct {
	GroupID  uint                   `json:"group_id"`
	Messages []GroupMessageResponse `json:"messages"`
}

// NewGroupResponse converts a model into a DTO.
func NewGroupResponse(group models.Group) GroupResponse {
	var members []string
	if len(group.Members) > 0 {
		_ = json.Unmarshal(group.Members, &members)
	}

	return GroupResponse{
		ID:        group.ID,
		Name:      group.Name,
		CreatorID: group.CreatorID,
		Members:   members,
		CreatedAt: group.CreatedAt,
	}
}

// NewGroupResponseSlice converts a slice of models into DTOs.
func NewGroupResponseSlice(groups []models.Group) []GroupResponse {
	out := make([]GroupResponse, 0, len(groups))
	for _, group := range groups {
		out = append(out, NewGroupResponse(group))
	}
	return out
}

// NewGroupMessageResponse converts a model into a DTO.
func NewGroupMessageResponse(message models.GroupMessage) GroupMessageResponse {
	return GroupMessageResponse{
		ID:         message.ID,
		GroupID:    message.GroupID,
		SenderID:   message.SenderID,
		Text:       message.Text,
		Attachment: message.Attachment,
		ReplyToID:  message.ReplyToID,
		CreatedAt:  message.CreatedAt,
	}
}

// NewGroupMessageResponseSlice converts a slice of models into DTOs.
func NewGroupMessageResponseSlice(messages []models.GroupMessage) []GroupMessageResponse {
	out := make([]GroupMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewGroupMessageResponse(message))
	}
	return out
}
