package render

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"thoughts/internal/auth"
	"thoughts/internal/models"
	"thoughts/web"
)

const (
	DefaultAvatar = "/static/img/avatar.svg"
	dateLayout    = "Jan 2, 2006, 3:04 PM"
	cacheSize     = 500
)

// SessionView drives the header and the composer.
type SessionView struct {
	SignedIn  bool
	Name      string
	AvatarURL string
	IsAdmin   bool
}

type PostView struct {
	ID          string
	Author      string
	AuthorPhoto string
	Date        string
	Content     template.HTML
	CanDelete   bool
}

type FeedView struct {
	Posts []PostView
}

type CommentView struct {
	ID      string
	Author  string
	Content string
}

// Renderer turns store snapshots into the HTML fragments that replace the
// feed, a post's comment list, and the session chrome. Every call rebuilds
// its fragment from scratch. Safe for concurrent use.
type Renderer struct {
	tmpl  *template.Template
	gate  auth.Gate
	loc   *time.Location
	cache *htmlCache
}

func New(gate auth.Gate, loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.Local
	}
	tmpl, err := template.New("fragments").Funcs(FuncMap()).ParseFS(web.FS, "templates/fragments/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse fragments: %w", err)
	}
	return &Renderer{
		tmpl:  tmpl,
		gate:  gate,
		loc:   loc,
		cache: newHTMLCache(cacheSize),
	}, nil
}

// FuncMap is shared by the fragments and the page templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"markdown": Markdown,
	}
}

func (r *Renderer) Session(viewer *models.Principal) SessionView {
	if viewer == nil {
		return SessionView{}
	}
	avatar := viewer.AvatarURL
	if avatar == "" {
		avatar = DefaultAvatar
	}
	return SessionView{
		SignedIn:  true,
		Name:      viewer.Name,
		AvatarURL: avatar,
		IsAdmin:   r.gate.IsAdmin(viewer),
	}
}

// SessionHTML renders the login button or the signed-in user bar.
func (r *Renderer) SessionHTML(viewer *models.Principal) (string, error) {
	return r.execute("session", r.Session(viewer))
}

// ComposerHTML renders the publish form for the admin and nothing for
// anyone else.
func (r *Renderer) ComposerHTML(viewer *models.Principal) (string, error) {
	return r.execute("composer", r.Session(viewer))
}

// Feed renders posts newest first. Delete buttons are included only when
// viewer is the admin at the time of this call.
func (r *Renderer) Feed(posts []models.Post, viewer *models.Principal) (string, error) {
	canDelete := r.gate.IsAdmin(viewer)
	sorted := SortPosts(posts)

	view := FeedView{Posts: make([]PostView, 0, len(sorted))}
	for _, p := range sorted {
		photo := p.AuthorPhoto
		if photo == "" {
			photo = DefaultAvatar
		}
		view.Posts = append(view.Posts, PostView{
			ID:          p.ID,
			Author:      p.Author,
			AuthorPhoto: photo,
			Date:        r.FormatTime(p.CreatedAt),
			Content:     r.PostHTML(p),
			CanDelete:   canDelete,
		})
	}
	return r.execute("feed", view)
}

// Comments renders one post's comments oldest first. An empty list renders
// as an empty string.
func (r *Renderer) Comments(comments []models.Comment) (string, error) {
	sorted := SortComments(comments)
	views := make([]CommentView, 0, len(sorted))
	for _, c := range sorted {
		views = append(views, CommentView{ID: c.ID, Author: c.Author, Content: c.Content})
	}
	return r.execute("comments", views)
}

// Stall renders the slow-connection hint shown in place of the loading
// indicator.
func (r *Renderer) Stall() (string, error) {
	return r.execute("feed-stall", nil)
}

// PostHTML returns the cached rendering of a post body.
func (r *Renderer) PostHTML(p models.Post) template.HTML {
	if p.ID != "" {
		if html, ok := r.cache.Get(p.ID); ok {
			return html
		}
	}
	html := Markdown(p.Content)
	if p.ID != "" {
		r.cache.Set(p.ID, html)
	}
	return html
}

// Forget drops a deleted post from the render cache.
func (r *Renderer) Forget(postID string) {
	r.cache.Delete(postID)
}

// FormatTime formats a stored timestamp in the configured zone, or returns
// "" when the timestamp is not set yet.
func (r *Renderer) FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.loc).Format(dateLayout)
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// SortPosts returns a newest-first copy of posts. Posts without a timestamp
// are treated as newer than any stamped post.
func SortPosts(posts []models.Post) []models.Post {
	sorted := append([]models.Post(nil), posts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].CreatedAt, sorted[j].CreatedAt
		if a.IsZero() || b.IsZero() {
			return a.IsZero() && !b.IsZero()
		}
		return a.After(b)
	})
	return sorted
}

// SortComments returns an oldest-first copy of comments. Comments without a
// timestamp go last.
func SortComments(comments []models.Comment) []models.Comment {
	sorted := append([]models.Comment(nil), comments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].CreatedAt, sorted[j].CreatedAt
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})
	return sorted
}
