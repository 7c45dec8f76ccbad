package models

import "time"

// Category is a course category acting as an entity. Only main entities may
// own domains; the default entity receives users nothing else claims.
type Category struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	IDNumber      string    `gorm:"column:idnumber;uniqueIndex;not null" json:"idnumber"`
	MainEntity    bool      `gorm:"not null" json:"main_entity"`
	DefaultEntity bool      `gorm:"not null;index" json:"default_entity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "course_categories"
}
