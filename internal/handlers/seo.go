package handlers

import (
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"thoughts/internal/render"
	"thoughts/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	feedItems  = 20
	titleRunes = 60
)

type SEOHandler struct {
	posts *store.PostStore
	site  Site
}

func NewSEOHandler(posts *store.PostStore, site Site) *SEOHandler {
	return &SEOHandler{posts: posts, site: site}
}

// RobotsTxt keeps crawlers off the write and stream endpoints.
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

Disallow: /actions/
Disallow: /auth/
Disallow: /live
Disallow: /posts

Sitemap: %s/feed.xml
`, h.site.URL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	Description string  `xml:"description"`
	Author      string  `xml:"author,omitempty"`
	PubDate     string  `xml:"pubDate,omitempty"`
	GUID        rssGUID `xml:"guid"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// RSSFeed serves the newest posts as RSS 2.0.
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context())
	if err != nil {
		log.Printf("[seo] list posts: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if len(posts) > feedItems {
		posts = posts[:feedItems]
	}

	doc := rssDoc{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         h.site.Title,
			Link:          h.site.URL + "/",
			Description:   h.site.Description,
			Language:      "en",
			LastBuildDate: time.Now().Format(time.RFC1123Z),
			AtomLink:      atomLink{Href: h.site.URL + "/feed.xml", Rel: "self", Type: "application/rss+xml"},
		},
	}
	for _, p := range posts {
		link := fmt.Sprintf("%s/#post-%s", h.site.URL, p.ID)
		item := rssItem{
			Title:       postTitle(p.Content),
			Link:        link,
			Description: string(render.Markdown(p.Content)),
			Author:      p.Author,
			GUID:        rssGUID{Value: "urn:uuid:" + p.ID},
		}
		if !p.CreatedAt.IsZero() {
			item.PubDate = p.CreatedAt.Format(time.RFC1123Z)
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Printf("[seo] encode feed: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", append([]byte(xml.Header), out...))
}

// postTitle is the first line of a post, shortened.
func postTitle(content string) string {
	line := strings.TrimSpace(content)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.TrimLeft(line, "# ")
	runes := []rune(line)
	if len(runes) > titleRunes {
		return string(runes[:titleRunes]) + "..."
	}
	return line
}
