package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"thoughts/internal/auth"
	"thoughts/internal/middleware"
	"thoughts/internal/models"
	"thoughts/internal/render"
	"thoughts/internal/services"
	"thoughts/internal/store"

	"github.com/gin-gonic/gin"
)

const postFailureTip = "\n\n(Tip: Check the ADMIN_EMAIL setting and database permissions on the server)"

// CommentNotifier tells the owner about comments from other people.
type CommentNotifier interface {
	SendCommentNotification(m services.CommentMail)
}

// PostHandler serves the owner's composer.
type PostHandler struct {
	posts *store.PostStore
}

func NewPostHandler(posts *store.PostStore) *PostHandler {
	return &PostHandler{posts: posts}
}

// Create publishes a post. The new post reaches every page through the live
// feed, not through this response.
func (h *PostHandler) Create(c *gin.Context) {
	content := strings.TrimSpace(c.PostForm("content"))
	if content == "" {
		c.Status(http.StatusNoContent)
		return
	}

	if _, err := h.posts.Create(c.Request.Context(), content, middleware.CurrentPrincipal(c)); err != nil {
		log.Printf("[posts] create failed: %v", err)
		alert(c, statusFor(err), "Failed to post: "+err.Error()+postFailureTip)
		return
	}
	c.Status(http.StatusCreated)
}

// ActionHandler dispatches the per-post buttons of the feed by name.
type ActionHandler struct {
	posts    *store.PostStore
	comments *store.CommentStore
	gate     auth.Gate
	renderer *render.Renderer
	notifier CommentNotifier
	actions  map[string]func(c *gin.Context, postID string)
}

func NewActionHandler(posts *store.PostStore, comments *store.CommentStore, gate auth.Gate, renderer *render.Renderer, notifier CommentNotifier) *ActionHandler {
	h := &ActionHandler{
		posts:    posts,
		comments: comments,
		gate:     gate,
		renderer: renderer,
		notifier: notifier,
	}
	h.actions = map[string]func(*gin.Context, string){
		"delete-post": h.deletePost,
		"add-comment": h.addComment,
	}
	return h
}

// Dispatch handles POST /actions/:action/:id.
func (h *ActionHandler) Dispatch(c *gin.Context) {
	action, ok := h.actions[c.Param("action")]
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	action(c, c.Param("id"))
}

// deletePost removes a post. Failures are logged only.
func (h *ActionHandler) deletePost(c *gin.Context, postID string) {
	if !h.gate.IsAdmin(middleware.CurrentPrincipal(c)) {
		log.Printf("[actions] delete-post %s: %v", postID, store.ErrNotAdmin)
		c.Status(http.StatusForbidden)
		return
	}
	if err := h.posts.Delete(c.Request.Context(), postID); err != nil {
		log.Printf("[actions] delete-post %s: %v", postID, err)
		c.Status(statusFor(err))
		return
	}
	h.renderer.Forget(postID)
	c.Status(http.StatusNoContent)
}

// addComment attaches a comment to a post. Signed-out visitors are told to
// sign in; other failures are logged only.
func (h *ActionHandler) addComment(c *gin.Context, postID string) {
	p := middleware.CurrentPrincipal(c)
	if p == nil {
		alert(c, http.StatusUnauthorized, "Please sign in to comment!")
		return
	}
	content := strings.TrimSpace(c.PostForm("content"))
	if content == "" {
		c.Status(http.StatusNoContent)
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), postID, content, p)
	if err != nil {
		log.Printf("[actions] add-comment %s: %v", postID, err)
		c.Status(statusFor(err))
		return
	}
	if !h.gate.IsAdmin(p) {
		h.notifyOwner(c.Request.Context(), comment)
	}
	c.Status(http.StatusNoContent)
}

func (h *ActionHandler) notifyOwner(ctx context.Context, comment *models.Comment) {
	if h.notifier == nil || h.gate.AdminEmail == "" {
		return
	}
	post, err := h.posts.Get(ctx, comment.PostID)
	if err != nil {
		log.Printf("[actions] load post %s for notification: %v", comment.PostID, err)
		return
	}
	h.notifier.SendCommentNotification(services.CommentMail{
		To:          h.gate.AdminEmail,
		Author:      comment.Author,
		PostContent: post.Content,
		Comment:     comment.Content,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, store.ErrSignInRequired):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrPostNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrEmptyContent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
