package main

import (
	"context"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"thoughts/internal/auth"
	"thoughts/internal/config"
	"thoughts/internal/db"
	"thoughts/internal/handlers"
	"thoughts/internal/identity"
	"thoughts/internal/render"
	"thoughts/internal/router"
	"thoughts/internal/services"
	"thoughts/internal/store"
	"thoughts/web"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	// Initialize Database
	db.Init(cfg.DatabaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Live-query change feed: in-process, or fanned out through Postgres.
	changes := store.NewChanges()
	var pub store.Publisher = changes
	if cfg.LiveBackend == config.LiveBackendPostgres && !db.IsSQLite(cfg.DatabaseURL) {
		bridge, err := store.NewPGBridge(ctx, cfg.DatabaseURL, changes)
		if err != nil {
			log.Fatalf("Failed to start change bridge: %v", err)
		}
		defer bridge.Close()
		go func() {
			for {
				err := bridge.Run(ctx)
				if ctx.Err() != nil {
					return
				}
				log.Printf("[store] change bridge stopped: %v, retrying in 5s", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
				}
			}
		}()
		pub = bridge
	}

	gate := auth.NewGate(cfg.AdminEmail)
	posts := store.NewPostStore(db.DB, gate, pub, changes)
	comments := store.NewCommentStore(db.DB, pub, changes)

	renderer, err := render.New(gate, cfg.Location)
	if err != nil {
		log.Fatalf("Failed to load fragments: %v", err)
	}
	pages, err := render.LoadPages()
	if err != nil {
		log.Fatalf("Failed to load pages: %v", err)
	}

	provider := identity.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.SiteURL)
	adapter := identity.NewAdapter(provider, identity.NewHub())
	mail := services.NewMailService(cfg.SMTP, cfg.SiteURL)

	// Initialize Gin
	r := gin.Default()
	r.HTMLRender = pages

	// Setup Sessions
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("thoughts_session", sessionStore))

	// Static Assets
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		log.Fatalf("Failed to load static assets: %v", err)
	}
	r.StaticFS("/static", http.FS(static))

	router.RegisterRoutes(r, router.Deps{
		DB:       db.DB,
		Posts:    posts,
		Comments: comments,
		Identity: adapter,
		Gate:     gate,
		Renderer: renderer,
		Notifier: mail,
		Site: handlers.Site{
			Title:       "Thoughts",
			Description: "Short notes, published live.",
			URL:         cfg.SiteURL,
		},
		FeedStallTimeout: cfg.FeedStallTimeout,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /live responses stay open.
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Printf("Thoughts server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	mail.Wait()
}
