package handlers

import (
	"thoughts/internal/middleware"
	"thoughts/internal/render"

	"github.com/gin-gonic/gin"
)

// AlertHeader marks a response whose body the page script shows in an
// alert box.
const AlertHeader = "X-Blog-Alert"

// Site holds what every page template needs.
type Site struct {
	Title       string
	Description string
	URL         string
}

// Render injects the session chrome and page metadata before executing a
// page template.
func Render(c *gin.Context, renderer *render.Renderer, site Site, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	obj["Session"] = renderer.Session(middleware.CurrentPrincipal(c))
	obj["Title"] = site.Title
	obj["Description"] = site.Description
	obj["FullURL"] = site.URL + c.Request.URL.Path
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// alert answers with a status the page treats as a failure and a message
// it shows to the user.
func alert(c *gin.Context, code int, message string) {
	c.Header(AlertHeader, "1")
	c.String(code, message)
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}
