package handlers

import (
	"log"
	"net/http"

	"thoughts/internal/identity"
	"thoughts/internal/middleware"
	"thoughts/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const oauthStateKey = "oauth_state"

type AuthHandler struct {
	identity *identity.Adapter
}

func NewAuthHandler(adapter *identity.Adapter) *AuthHandler {
	return &AuthHandler{identity: adapter}
}

// GoogleLogin starts the Google OAuth flow.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	state, err := identity.NewStateToken()
	if err != nil {
		log.Printf("[auth] state token: %v", err)
		c.Redirect(http.StatusFound, "/")
		return
	}

	// Keep state in the session to check it on the callback.
	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	session.Save()

	c.Redirect(http.StatusTemporaryRedirect, h.identity.SignInURL(state))
}

// GoogleCallback finishes sign-in. Every failure is logged and the browser
// goes back home unchanged.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	session := sessions.Default(c)
	savedState, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	session.Save()

	if savedState == "" || c.Query("state") != savedState {
		log.Printf("[auth] sign-in failed: invalid state")
		c.Redirect(http.StatusFound, "/")
		return
	}
	if errMsg := c.Query("error"); errMsg != "" {
		log.Printf("[auth] sign-in failed: provider returned %s", errMsg)
		c.Redirect(http.StatusFound, "/")
		return
	}
	code := c.Query("code")
	if code == "" {
		log.Printf("[auth] sign-in failed: missing code")
		c.Redirect(http.StatusFound, "/")
		return
	}

	save := func(p *models.Principal) error { return middleware.SavePrincipal(c, p) }
	if _, err := h.identity.CompleteSignIn(c.Request.Context(), middleware.SessionID(c), code, save); err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// Logout signs the browser out. HTMX callers get 204 and see the change
// through their live view.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := middleware.ClearPrincipal(c); err != nil {
		log.Printf("[auth] clear session: %v", err)
	}
	h.identity.SignOut(middleware.SessionID(c))

	if isHTMX(c) {
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusFound, "/")
}
