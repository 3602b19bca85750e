package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment belongs to exactly one post. No foreign key: deleting a post
// leaves its comments in place.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"size:36;not null;index:idx_comment_post_time" json:"postId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Author    string    `gorm:"not null" json:"author"`
	AuthorID  string    `gorm:"size:128;not null" json:"authorId"`
	CreatedAt time.Time `gorm:"index:idx_comment_post_time" json:"timestamp"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
