package handlers_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"thoughts/internal/auth"
	"thoughts/internal/handlers"
	"thoughts/internal/identity"
	"thoughts/internal/middleware"
	"thoughts/internal/models"
	"thoughts/internal/render"
	"thoughts/internal/router"
	"thoughts/internal/services"
	"thoughts/internal/store"
	"thoughts/internal/testutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	admin  = &models.Principal{ID: "owner-1", Name: "Owner", Email: "owner@example.com"}
	reader = &models.Principal{ID: "reader-1", Name: "Reader", Email: "reader@example.com"}

	principals = map[string]*models.Principal{"admin": admin, "reader": reader}
)

// stubProvider signs in as the principal named by the authorization code.
type stubProvider struct{}

func (stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (stubProvider) Exchange(_ context.Context, code string) (*models.Principal, error) {
	if p, ok := principals[code]; ok {
		return p, nil
	}
	return nil, errors.New("invalid grant")
}

type recordingNotifier struct {
	mu    sync.Mutex
	mails []services.CommentMail
}

func (n *recordingNotifier) SendCommentNotification(m services.CommentMail) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mails = append(n.mails, m)
}

func (n *recordingNotifier) sent() []services.CommentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]services.CommentMail(nil), n.mails...)
}

type testApp struct {
	t        *testing.T
	server   *httptest.Server
	client   *http.Client
	db       *gorm.DB
	posts    *store.PostStore
	comments *store.CommentStore
	notifier *recordingNotifier
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testutil.NewDB(t)
	changes := store.NewChanges()
	gate := auth.NewGate(admin.Email)
	posts := store.NewPostStore(gdb, gate, changes, changes)
	comments := store.NewCommentStore(gdb, changes, changes)

	renderer, err := render.New(gate, time.UTC)
	require.NoError(t, err)
	pages, err := render.LoadPages()
	require.NoError(t, err)

	app := &testApp{t: t, db: gdb, posts: posts, comments: comments, notifier: &recordingNotifier{}}

	r := gin.New()
	r.HTMLRender = pages
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	router.RegisterRoutes(r, router.Deps{
		DB:       gdb,
		Posts:    posts,
		Comments: comments,
		Identity: identity.NewAdapter(stubProvider{}, identity.NewHub()),
		Gate:     gate,
		Renderer: renderer,
		Notifier: app.notifier,
		Site:     handlers.Site{Title: "Thoughts", Description: "Test blog", URL: "https://blog.example.com"},
	})
	r.GET("/test/sign-in/:who", func(c *gin.Context) {
		p, ok := principals[c.Param("who")]
		if !ok || middleware.SavePrincipal(c, p) != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusNoContent)
	})

	app.server = httptest.NewServer(r)
	t.Cleanup(app.server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	app.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return app
}

func (a *testApp) do(method, path string, form url.Values, htmx bool) (*http.Response, string) {
	a.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, a.server.URL+path, body)
	require.NoError(a.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, string(out)
}

func (a *testApp) get(path string) (*http.Response, string) {
	return a.do(http.MethodGet, path, nil, false)
}

func (a *testApp) post(path string, form url.Values) (*http.Response, string) {
	if form == nil {
		form = url.Values{}
	}
	return a.do(http.MethodPost, path, form, true)
}

func (a *testApp) signIn(who string) {
	a.t.Helper()
	resp, _ := a.get("/test/sign-in/" + who)
	require.Equal(a.t, http.StatusNoContent, resp.StatusCode)
}

func (a *testApp) createPost(content string) *models.Post {
	a.t.Helper()
	p, err := a.posts.Create(context.Background(), content, admin)
	require.NoError(a.t, err)
	return p
}

func (a *testApp) count(model any) int64 {
	a.t.Helper()
	var n int64
	require.NoError(a.t, a.db.Model(model).Count(&n).Error)
	return n
}

func TestIndexSignedOut(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `sse-connect="/live"`)
	assert.Contains(t, body, `id="login-btn"`)
	assert.Contains(t, body, "Loading thoughts...")
	assert.NotContains(t, body, "admin-post-area")
	assert.Contains(t, body, `href="https://blog.example.com/"`)
}

// Comment lists arrive right after the feed that contains them, so the feed
// must settle synchronously for their sse-swap listeners to exist.
func TestIndexFeedSwapSettlesImmediately(t *testing.T) {
	app := newTestApp(t)

	_, body := app.get("/")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)

	feed := doc.Find("#posts-feed")
	require.Equal(t, 1, feed.Length())
	assert.Equal(t, "feed", feed.AttrOr("sse-swap", ""))
	assert.Equal(t, "innerHTML settle:0ms", feed.AttrOr("hx-swap", ""))
}

func TestIndexShowsComposerToAdminOnly(t *testing.T) {
	app := newTestApp(t)

	app.signIn("reader")
	_, body := app.get("/")
	assert.Contains(t, body, "Reader")
	assert.NotContains(t, body, "admin-post-area")

	app.signIn("admin")
	_, body = app.get("/")
	assert.Contains(t, body, `id="admin-post-area"`)
}

func TestGoogleSignInFlow(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.get("/auth/google/login")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	resp, _ = app.get("/auth/google/callback?state=" + url.QueryEscape(state) + "&code=admin")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, body := app.get("/")
	assert.Contains(t, body, "Owner")
	assert.Contains(t, body, `id="logout-btn"`)
	assert.Contains(t, body, `id="admin-post-area"`)
}

func TestGoogleCallbackFailuresLeaveSessionSignedOut(t *testing.T) {
	cases := map[string]func(state string) string{
		"wrong state":     func(string) string { return "state=forged&code=admin" },
		"provider error":  func(s string) string { return "state=" + url.QueryEscape(s) + "&error=access_denied" },
		"missing code":    func(s string) string { return "state=" + url.QueryEscape(s) },
		"exchange failed": func(s string) string { return "state=" + url.QueryEscape(s) + "&code=bogus" },
	}
	for name, query := range cases {
		t.Run(name, func(t *testing.T) {
			app := newTestApp(t)

			resp, _ := app.get("/auth/google/login")
			location, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(t, err)

			resp, _ = app.get("/auth/google/callback?" + query(location.Query().Get("state")))
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, "/", resp.Header.Get("Location"))

			_, body := app.get("/")
			assert.Contains(t, body, `id="login-btn"`)
		})
	}
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	app.signIn("admin")

	resp, _ := app.post("/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body := app.get("/")
	assert.Contains(t, body, `id="login-btn"`)

	app.signIn("reader")
	resp, _ = app.get("/logout")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	_, body = app.get("/")
	assert.Contains(t, body, `id="login-btn"`)
}

func TestCreatePostAsAdmin(t *testing.T) {
	app := newTestApp(t)
	app.signIn("admin")

	resp, _ := app.post("/posts", url.Values{"content": {"  Hello world  "}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	list, err := app.posts.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Hello world", list[0].Content)
	assert.Equal(t, "Owner", list[0].Author)
}

func TestCreatePostRejectedShowsAlert(t *testing.T) {
	app := newTestApp(t)
	app.signIn("reader")

	resp, body := app.post("/posts", url.Values{"content": {"sneaky"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(handlers.AlertHeader))
	assert.True(t, strings.HasPrefix(body, "Failed to post: "+store.ErrNotAdmin.Error()))
	assert.Contains(t, body, "(Tip: Check the ADMIN_EMAIL setting and database permissions on the server)")
	assert.Zero(t, app.count(&models.Post{}))
}

func TestCreatePostIgnoresBlankContent(t *testing.T) {
	app := newTestApp(t)
	app.signIn("admin")

	resp, _ := app.post("/posts", url.Values{"content": {" \n\t "}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(handlers.AlertHeader))
	assert.Zero(t, app.count(&models.Post{}))
}

func TestDeletePostAction(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost("doomed")

	app.signIn("reader")
	resp, _ := app.post("/actions/delete-post/"+post.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(handlers.AlertHeader))
	assert.Equal(t, int64(1), app.count(&models.Post{}))

	app.signIn("admin")
	resp, _ = app.post("/actions/delete-post/"+post.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, app.count(&models.Post{}))

	resp, _ = app.post("/actions/delete-post/"+post.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(handlers.AlertHeader))
}

func TestAddCommentSignedOutPromptsSignIn(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost("post")

	resp, body := app.post("/actions/add-comment/"+post.ID, url.Values{"content": {"hello"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(handlers.AlertHeader))
	assert.Equal(t, "Please sign in to comment!", body)
	assert.Zero(t, app.count(&models.Comment{}))
}

func TestAddCommentNotifiesOwner(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost("A thought worth discussing")

	app.signIn("reader")
	resp, _ := app.post("/actions/add-comment/"+post.ID, url.Values{"content": {" Nice post! "}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	list, err := app.comments.List(context.Background(), post.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Nice post!", list[0].Content)
	assert.Equal(t, "Reader", list[0].Author)

	mails := app.notifier.sent()
	require.Len(t, mails, 1)
	assert.Equal(t, admin.Email, mails[0].To)
	assert.Equal(t, "Reader", mails[0].Author)
	assert.Equal(t, "A thought worth discussing", mails[0].PostContent)
	assert.Equal(t, "Nice post!", mails[0].Comment)
}

func TestAddCommentByOwnerIsNotMailed(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost("post")

	app.signIn("admin")
	resp, _ := app.post("/actions/add-comment/"+post.ID, url.Values{"content": {"Thanks for reading"}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int64(1), app.count(&models.Comment{}))
	assert.Empty(t, app.notifier.sent())
}

func TestAddCommentFailuresAreSilent(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost("post")
	app.signIn("reader")

	resp, _ := app.post("/actions/add-comment/"+post.ID, url.Values{"content": {"   "}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = app.post("/actions/add-comment/no-such-post", url.Values{"content": {"hello"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(handlers.AlertHeader))

	assert.Zero(t, app.count(&models.Comment{}))
	assert.Empty(t, app.notifier.sent())
}

func TestUnknownActionIsNotFound(t *testing.T) {
	app := newTestApp(t)
	app.signIn("admin")

	resp, _ := app.post("/actions/launch-rockets/x", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRSSFeed(t *testing.T) {
	app := newTestApp(t)
	app.createPost("# First thought\nwith a body")
	app.createPost("Second **bold** thought")

	resp, body := app.get("/feed.xml")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/rss+xml")

	feed, err := gofeed.NewParser().ParseString(body)
	require.NoError(t, err)
	assert.Equal(t, "Thoughts", feed.Title)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "Second **bold** thought", feed.Items[0].Title)
	assert.Contains(t, feed.Items[0].Description, "<strong>bold</strong>")
	assert.Equal(t, "First thought", feed.Items[1].Title)
	assert.True(t, strings.HasPrefix(feed.Items[1].Link, "https://blog.example.com/#post-"))
}

func TestRobotsAndHealth(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get("/robots.txt")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Disallow: /actions/")

	resp, body = app.get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"ok"`)
}

type sseEvent struct {
	name string
	data string
}

// openStream reads /live into a channel until the test ends.
func (a *testApp) openStream() <-chan sseEvent {
	a.t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.server.URL+"/live", nil)
	require.NoError(a.t, err)
	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	require.Equal(a.t, http.StatusOK, resp.StatusCode)
	assert.Contains(a.t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := make(chan sseEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		var ev sseEvent
		var data []string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if ev.name != "" {
					ev.data = strings.Join(data, "\n")
					events <- ev
				}
				ev, data = sseEvent{}, nil
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
	}()
	a.t.Cleanup(func() {
		cancel()
		resp.Body.Close()
		<-done
	})
	return events
}

func waitEvent(t *testing.T, events <-chan sseEvent, name string, match func(string) bool) sseEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed while waiting for %s", name)
			if ev.name == name && match(ev.data) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", name)
		}
	}
}

func TestLiveStreamPushesFeedAndComments(t *testing.T) {
	app := newTestApp(t)
	app.signIn("admin")
	events := app.openStream()

	waitEvent(t, events, "session", func(d string) bool { return strings.Contains(d, "Owner") })
	waitEvent(t, events, "feed", func(d string) bool { return strings.Contains(d, "No thoughts yet. Check back soon!") })

	resp, _ := app.post("/posts", url.Values{"content": {"Live thought"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ev := waitEvent(t, events, "feed", func(d string) bool { return strings.Contains(d, "Live thought") })
	assert.Contains(t, ev.data, "delete-btn")

	list, err := app.posts.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	postID := list[0].ID

	resp, _ = app.post("/actions/add-comment/"+postID, url.Values{"content": {"First!"}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	waitEvent(t, events, "comments-"+postID, func(d string) bool { return strings.Contains(d, "First!") })

	resp, _ = app.post("/actions/delete-post/"+postID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	waitEvent(t, events, "feed", func(d string) bool { return strings.Contains(d, "No thoughts yet") })
}

func TestLiveStreamFollowsSignOut(t *testing.T) {
	app := newTestApp(t)
	app.createPost("visible to all")
	app.signIn("admin")
	events := app.openStream()

	waitEvent(t, events, "feed", func(d string) bool { return strings.Contains(d, "delete-btn") })

	resp, _ := app.post("/logout", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	waitEvent(t, events, "session", func(d string) bool { return strings.Contains(d, `id="login-btn"`) })
	waitEvent(t, events, "composer", func(d string) bool { return !strings.Contains(d, "admin-post-area") })
	waitEvent(t, events, "feed", func(d string) bool {
		return strings.Contains(d, "visible to all") && !strings.Contains(d, "delete-btn")
	})
}
