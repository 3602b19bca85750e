package router

import (
	"time"

	"thoughts/internal/auth"
	"thoughts/internal/handlers"
	"thoughts/internal/identity"
	"thoughts/internal/middleware"
	"thoughts/internal/render"
	"thoughts/internal/store"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the services the routes are built from.
type Deps struct {
	DB       *gorm.DB
	Posts    *store.PostStore
	Comments *store.CommentStore
	Identity *identity.Adapter
	Gate     auth.Gate
	Renderer *render.Renderer
	Notifier handlers.CommentNotifier
	Site     handlers.Site

	// FeedStallTimeout is how long a page waits for its first feed
	// snapshot before showing a connectivity hint.
	FeedStallTimeout time.Duration
}

// RegisterRoutes expects the sessions middleware to be installed already.
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/live"})))
	r.Use(middleware.LoadPrincipal())

	blogHandler := handlers.NewBlogHandler(d.Posts, d.Comments, d.Identity, d.Renderer, d.Site, d.FeedStallTimeout)
	authHandler := handlers.NewAuthHandler(d.Identity)
	postHandler := handlers.NewPostHandler(d.Posts)
	actionHandler := handlers.NewActionHandler(d.Posts, d.Comments, d.Gate, d.Renderer, d.Notifier)
	seoHandler := handlers.NewSEOHandler(d.Posts, d.Site)

	// Page and live stream
	r.GET("/", blogHandler.Index)
	r.GET("/live", blogHandler.Live)

	// Sign-in
	r.GET("/auth/google/login", authHandler.GoogleLogin)
	r.GET("/auth/google/callback", authHandler.GoogleCallback)
	r.GET("/logout", authHandler.Logout)
	r.POST("/logout", authHandler.Logout)

	// Writes
	r.POST("/posts", postHandler.Create)
	r.POST("/actions/:action/:id", actionHandler.Dispatch)

	// SEO and ops
	r.GET("/feed.xml", seoHandler.RSSFeed)
	r.GET("/robots.txt", seoHandler.RobotsTxt)
	r.GET("/healthz", handlers.Health(d.DB))
}
