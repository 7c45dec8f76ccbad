package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"not null;index" json:"email"`
	CategoryName string    `json:"category_name"` // empty while the entity is undetermined
	External     bool      `gorm:"not null" json:"external"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
