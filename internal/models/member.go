package models

import "time"

// Member is a chat platform member. IDs come from the platform, not the database.
type Member struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type UpdateMemberRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}
