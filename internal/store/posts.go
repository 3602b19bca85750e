package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"thoughts/internal/auth"
	"thoughts/internal/models"

	"gorm.io/gorm"
)

// PostStore is the posts collection: create, delete and a live feed query.
type PostStore struct {
	db      *gorm.DB
	gate    auth.Gate
	pub     Publisher
	changes *Changes
}

// NewPostStore publishes writes through pub and serves live queries from
// changes. pub is usually changes itself, or a PGBridge that loops
// notifications back into changes.
func NewPostStore(db *gorm.DB, gate auth.Gate, pub Publisher, changes *Changes) *PostStore {
	return &PostStore{db: db, gate: gate, pub: pub, changes: changes}
}

// Create appends a post authored by p. Empty content and non-admin authors
// are rejected before the database is touched.
func (s *PostStore) Create(ctx context.Context, content string, p *models.Principal) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if !s.gate.IsAdmin(p) {
		return nil, ErrNotAdmin
	}

	post := models.Post{
		Content:     content,
		Author:      p.Name,
		AuthorPhoto: p.AvatarURL,
		Email:       p.Email,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	s.publish(ctx, TopicPosts)
	return &post, nil
}

// Delete removes a post by id. Its comments are left in place.
func (s *PostStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return fmt.Errorf("delete post %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	s.publish(ctx, TopicPosts)
	return nil
}

// Get loads one post.
func (s *PostStore) Get(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return &post, nil
}

// List returns every post, newest first.
func (s *PostStore) List(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error
	return posts, err
}

// SubscribeFeed delivers the full newest-first post list now and after every
// change to the collection.
func (s *PostStore) SubscribeFeed(fn func([]models.Post)) *Subscription {
	return watch(s.changes, TopicPosts, s.List, fn)
}

func (s *PostStore) publish(ctx context.Context, topic string) {
	if err := s.pub.Publish(ctx, topic); err != nil {
		log.Printf("[store] publish %s failed: %v", topic, err)
	}
}
