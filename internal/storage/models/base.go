// internal/storage/models/base.go
package models

import "time"

// BaseModel replaces gorm.Model; rows are never soft-deleted.
type BaseModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
