package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"thoughts/internal/models"

	"gorm.io/gorm"
)

// CommentStore is the per-post comments sub-collection.
type CommentStore struct {
	db      *gorm.DB
	pub     Publisher
	changes *Changes
}

func NewCommentStore(db *gorm.DB, pub Publisher, changes *Changes) *CommentStore {
	return &CommentStore{db: db, pub: pub, changes: changes}
}

// Create appends a comment by p under postID. Any signed-in principal may
// comment; a nil principal is rejected without a database call.
func (s *CommentStore) Create(ctx context.Context, postID, content string, p *models.Principal) (*models.Comment, error) {
	if p == nil {
		return nil, ErrSignInRequired
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	comment := models.Comment{
		PostID:   postID,
		Content:  content,
		Author:   p.Name,
		AuthorID: p.ID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrPostNotFound
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create comment on %s: %w", postID, err)
	}

	topic := CommentsTopic(postID)
	if err := s.pub.Publish(ctx, topic); err != nil {
		log.Printf("[store] publish %s failed: %v", topic, err)
	}
	return &comment, nil
}

// List returns the comments of postID, oldest first.
func (s *CommentStore) List(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

// SubscribeComments delivers postID's full oldest-first comment list now and
// after every new comment on that post.
func (s *CommentStore) SubscribeComments(postID string, fn func([]models.Comment)) *Subscription {
	load := func(ctx context.Context) ([]models.Comment, error) {
		return s.List(ctx, postID)
	}
	return watch(s.changes, CommentsTopic(postID), load, fn)
}
