package store

import "errors"

var (
	ErrEmptyContent   = errors.New("content is empty")
	ErrNotAdmin       = errors.New("only the blog owner can do that")
	ErrSignInRequired = errors.New("sign in required")
	ErrPostNotFound   = errors.New("post not found")
)
