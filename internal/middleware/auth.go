package middleware

import (
	"thoughts/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	PrincipalKey = "principal"
	SessionIDKey = "sid"
)

// Session cookie fields.
const (
	sessionID       = "sid"
	principalID     = "principal_id"
	principalName   = "principal_name"
	principalAvatar = "principal_avatar"
	principalEmail  = "principal_email"
)

// LoadPrincipal makes sure the browser has a session id and puts the
// signed-in principal, if any, into the request context.
func LoadPrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		sid, _ := session.Get(sessionID).(string)
		if sid == "" {
			sid = uuid.NewString()
			session.Set(sessionID, sid)
			session.Save()
		}
		c.Set(SessionIDKey, sid)

		if p := principalFromSession(session); p != nil {
			c.Set(PrincipalKey, p)
		}
		c.Next()
	}
}

// CurrentPrincipal returns the signed-in principal or nil.
func CurrentPrincipal(c *gin.Context) *models.Principal {
	if v, ok := c.Get(PrincipalKey); ok {
		if p, ok := v.(*models.Principal); ok {
			return p
		}
	}
	return nil
}

// SessionID returns the browser session id set by LoadPrincipal.
func SessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

// SavePrincipal stores p in the session cookie and the request context.
func SavePrincipal(c *gin.Context, p *models.Principal) error {
	session := sessions.Default(c)
	session.Set(principalID, p.ID)
	session.Set(principalName, p.Name)
	session.Set(principalAvatar, p.AvatarURL)
	session.Set(principalEmail, p.Email)
	c.Set(PrincipalKey, p)
	return session.Save()
}

// ClearPrincipal signs the browser out but keeps its session id so live
// views of the same browser stay addressable.
func ClearPrincipal(c *gin.Context) error {
	session := sessions.Default(c)
	session.Delete(principalID)
	session.Delete(principalName)
	session.Delete(principalAvatar)
	session.Delete(principalEmail)
	c.Set(PrincipalKey, (*models.Principal)(nil))
	return session.Save()
}

func principalFromSession(session sessions.Session) *models.Principal {
	id, _ := session.Get(principalID).(string)
	if id == "" {
		return nil
	}
	name, _ := session.Get(principalName).(string)
	avatar, _ := session.Get(principalAvatar).(string)
	email, _ := session.Get(principalEmail).(string)
	return &models.Principal{ID: id, Name: name, AvatarURL: avatar, Email: email}
}
