package dto

import (
	"time"

	"github.com/lumenchat/lumen-go-api/internal/models"
)

// ThemeUpdateRequest persists the user's presentation theme choice.
type ThemeUpdateRequest struct {
	Theme string `json:"theme" validate:"required,oneof=love dark ocean forest sunset"`
}

// UserResponse represents a mirrored identity-provider profile.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	PhotoURL  string    `json:"photo_url"`
	Theme     string    `json:"theme"`
	CreatedAt time.Time `json:"created_at"`
}

// RosterEntry is one row of the home roster: a peer plus the unread count
// of the direct conversation with them.
type RosterEntry struct {
	User        UserResponse `json:"user"`
	UnreadCount int64        `json:"unread_count"`
}

// RosterQuery selects roster ordering.
type RosterQuery struct {
	SortBy string `query:"sort_by" validate:"omitempty,oneof=name unread"`
	Order  string `query:"order" validate:"omitempty,oneof=asc desc"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		PhotoURL:  user.PhotoURL,
		Theme:     user.Theme,
		CreatedAt: user.CreatedAt,
	}
}

// NewUserResponseSlice converts a slice of models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}
