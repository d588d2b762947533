package models

import "time"

// User mirrors a profile from the external identity provider. Rows are
// upserted with merge semantics on every sign-in and removed only through
// the admin surface, which cascades to every message the user authored.
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     string    `gorm:"size:255;index" json:"email"`
	PhotoURL  string    `gorm:"size:512" json:"photo_url"`
	Theme     string    `gorm:"size:32;default:love" json:"theme"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
