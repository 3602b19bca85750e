package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"thoughts/internal/identity"
	"thoughts/internal/live"
	"thoughts/internal/middleware"
	"thoughts/internal/render"
	"thoughts/internal/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const defaultHeartbeat = 25 * time.Second

// BlogHandler serves the page and its live event stream.
type BlogHandler struct {
	posts      *store.PostStore
	comments   *store.CommentStore
	identity   *identity.Adapter
	renderer   *render.Renderer
	site       Site
	stallAfter time.Duration
	heartbeat  time.Duration
}

func NewBlogHandler(posts *store.PostStore, comments *store.CommentStore, adapter *identity.Adapter, renderer *render.Renderer, site Site, stallAfter time.Duration) *BlogHandler {
	return &BlogHandler{
		posts:      posts,
		comments:   comments,
		identity:   adapter,
		renderer:   renderer,
		site:       site,
		stallAfter: stallAfter,
		heartbeat:  defaultHeartbeat,
	}
}

// Index renders the page shell. The feed arrives over /live.
func (h *BlogHandler) Index(c *gin.Context) {
	Render(c, h.renderer, h.site, http.StatusOK, "index.html", nil)
}

// Live streams HTML fragments for this browser until it disconnects.
func (h *BlogHandler) Live(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	view := live.NewView(h.posts, h.comments, h.identity, h.renderer, live.Options{
		SessionID:  middleware.SessionID(c),
		Seed:       middleware.CurrentPrincipal(c),
		StallAfter: h.stallAfter,
	})
	go view.Run(ctx)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	events := view.Events()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-heartbeat.C:
			_, err := fmt.Fprint(w, ": ping\n\n")
			return err == nil
		}
	})
}

// Health reports whether the database answers.
func Health(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := gdb.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
