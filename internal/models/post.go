package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is an owner-authored entry. Posts are immutable once created.
type Post struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Author      string    `gorm:"not null" json:"author"`
	AuthorPhoto string    `json:"authorPhoto"`
	Email       string    `gorm:"index" json:"email"`
	CreatedAt   time.Time `gorm:"index" json:"timestamp"`
}

// BeforeCreate assigns the opaque id when the caller did not.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
