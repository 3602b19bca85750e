package models

// Principal is the signed-in identity of a browser session. It lives in the
// session cookie and the identity hub only; it is never written to the database.
type Principal struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	Email     string `json:"email"`
}
