package live

import (
	"context"
	"log"
	"time"

	"thoughts/internal/models"
	"thoughts/internal/render"
	"thoughts/internal/store"
)

// Event names understood by the page's sse-swap targets.
const (
	EventSession  = "session"
	EventComposer = "composer"
	EventFeed     = "feed"
)

// CommentsEvent names the event that replaces postID's comment list.
func CommentsEvent(postID string) string {
	return "comments-" + postID
}

// Event is one HTML fragment for the browser.
type Event struct {
	Name string
	Data string
}

type FeedSource interface {
	SubscribeFeed(fn func([]models.Post)) *store.Subscription
}

type CommentSource interface {
	SubscribeComments(postID string, fn func([]models.Comment)) *store.Subscription
}

type PrincipalSource interface {
	OnPrincipalChanged(sid string, seed *models.Principal, fn func(*models.Principal)) func()
}

type Options struct {
	SessionID string
	// Seed is the principal known from the session cookie when the view opens.
	Seed *models.Principal
	// StallAfter is how long to wait for the first feed snapshot before
	// showing the connectivity hint. Zero disables the hint.
	StallAfter time.Duration
}

// View keeps one browser page in sync with the stores. It owns the feed
// subscription and one comment subscription per rendered post; all of its
// state is confined to the Run goroutine.
type View struct {
	feed       FeedSource
	comments   CommentSource
	principals PrincipalSource
	renderer   *render.Renderer
	opts       Options

	out chan Event
}

func NewView(feed FeedSource, comments CommentSource, principals PrincipalSource, renderer *render.Renderer, opts Options) *View {
	return &View{
		feed:       feed,
		comments:   comments,
		principals: principals,
		renderer:   renderer,
		opts:       opts,
		out:        make(chan Event, 32),
	}
}

// Events is closed when Run returns.
func (v *View) Events() <-chan Event {
	return v.out
}

type commentSnapshot struct {
	generation uint64
	postID     string
	comments   []models.Comment
}

// runState is owned by Run.
type runState struct {
	principal   *models.Principal
	posts       []models.Post
	loaded      bool
	generation  uint64
	genCancel   context.CancelFunc
	commentSubs []*store.Subscription
}

// Run drives the view until ctx is done.
func (v *View) Run(ctx context.Context) {
	defer close(v.out)

	// Principal and feed deliveries only need the latest value; comment
	// snapshots are tagged with the feed generation that asked for them.
	principals := make(chan *models.Principal, 1)
	snapshots := make(chan []models.Post, 1)
	comments := make(chan commentSnapshot, 16)

	unwatch := v.principals.OnPrincipalChanged(v.opts.SessionID, v.opts.Seed, func(p *models.Principal) {
		replaceLatest(principals, p)
	})
	defer unwatch()

	feedSub := v.feed.SubscribeFeed(func(posts []models.Post) {
		replaceLatest(snapshots, posts)
	})
	defer feedSub.Unsubscribe()

	var stall <-chan time.Time
	if v.opts.StallAfter > 0 {
		timer := time.NewTimer(v.opts.StallAfter)
		defer timer.Stop()
		stall = timer.C
	}

	st := &runState{}
	defer v.releaseComments(st)

	for {
		select {
		case <-ctx.Done():
			return

		case p := <-principals:
			st.principal = p
			v.renderSession(ctx, st)
			// Delete buttons follow the principal at render time, so a
			// change re-renders the last snapshot.
			if st.loaded {
				v.renderFeed(ctx, st, comments)
			}

		case posts := <-snapshots:
			st.posts = posts
			st.loaded = true
			stall = nil
			v.renderFeed(ctx, st, comments)

		case cs := <-comments:
			if cs.generation != st.generation {
				continue
			}
			html, err := v.renderer.Comments(cs.comments)
			if err != nil {
				log.Printf("[live] render comments of %s: %v", cs.postID, err)
				continue
			}
			v.emit(ctx, Event{Name: CommentsEvent(cs.postID), Data: html})

		case <-stall:
			stall = nil
			if st.loaded {
				continue
			}
			html, err := v.renderer.Stall()
			if err != nil {
				log.Printf("[live] render stall message: %v", err)
				continue
			}
			v.emit(ctx, Event{Name: EventFeed, Data: html})
		}
	}
}

func (v *View) renderSession(ctx context.Context, st *runState) {
	session, err := v.renderer.SessionHTML(st.principal)
	if err != nil {
		log.Printf("[live] render session: %v", err)
		return
	}
	composer, err := v.renderer.ComposerHTML(st.principal)
	if err != nil {
		log.Printf("[live] render composer: %v", err)
		return
	}
	v.emit(ctx, Event{Name: EventSession, Data: session})
	v.emit(ctx, Event{Name: EventComposer, Data: composer})
}

// renderFeed rebuilds the whole feed and replaces every comment subscription
// with a fresh one per rendered post.
func (v *View) renderFeed(ctx context.Context, st *runState, comments chan<- commentSnapshot) {
	v.releaseComments(st)

	html, err := v.renderer.Feed(st.posts, st.principal)
	if err != nil {
		log.Printf("[live] render feed: %v", err)
		return
	}
	v.emit(ctx, Event{Name: EventFeed, Data: html})

	genCtx, cancel := context.WithCancel(ctx)
	st.genCancel = cancel
	generation := st.generation

	for _, p := range st.posts {
		postID := p.ID
		sub := v.comments.SubscribeComments(postID, func(list []models.Comment) {
			select {
			case comments <- commentSnapshot{generation: generation, postID: postID, comments: list}:
			case <-genCtx.Done():
			}
		})
		st.commentSubs = append(st.commentSubs, sub)
	}
}

// releaseComments ends the current comment generation.
func (v *View) releaseComments(st *runState) {
	if st.genCancel != nil {
		st.genCancel()
		st.genCancel = nil
	}
	for _, sub := range st.commentSubs {
		sub.Unsubscribe()
	}
	st.commentSubs = nil
	st.generation++
}

func (v *View) emit(ctx context.Context, ev Event) {
	select {
	case v.out <- ev:
	case <-ctx.Done():
	}
}

// replaceLatest stores v in a capacity-1 channel, dropping an undelivered
// older value. Safe for a single sender.
func replaceLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
