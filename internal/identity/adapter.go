package identity

import (
	"context"
	"log"

	"thoughts/internal/models"
)

// Adapter wraps a Provider and is the single writer of the Hub.
type Adapter struct {
	provider Provider
	hub      *Hub
}

func NewAdapter(provider Provider, hub *Hub) *Adapter {
	return &Adapter{provider: provider, hub: hub}
}

// SignInURL starts the interactive provider flow.
func (a *Adapter) SignInURL(state string) string {
	return a.provider.AuthCodeURL(state)
}

// CompleteSignIn finishes the provider flow for session sid. persist, if
// not nil, stores the principal with the browser; watchers only hear about
// it once persist succeeds. On failure the error is logged and the session
// keeps its previous principal.
func (a *Adapter) CompleteSignIn(ctx context.Context, sid, code string, persist func(*models.Principal) error) (*models.Principal, error) {
	p, err := a.provider.Exchange(ctx, code)
	if err != nil {
		log.Printf("[auth] sign-in failed: %v", err)
		return nil, err
	}
	if persist != nil {
		if err := persist(p); err != nil {
			log.Printf("[auth] sign-in failed: save session: %v", err)
			return nil, err
		}
	}
	a.hub.Publish(sid, p)
	return p, nil
}

// SignOut clears the principal of session sid.
func (a *Adapter) SignOut(sid string) {
	a.hub.Publish(sid, nil)
}

// OnPrincipalChanged calls fn now and on every later sign-in or sign-out of
// sid until the returned func is called.
func (a *Adapter) OnPrincipalChanged(sid string, seed *models.Principal, fn func(*models.Principal)) func() {
	return a.hub.Watch(sid, seed, fn)
}
