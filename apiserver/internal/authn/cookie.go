package authn

import "net/http"

// SessionCookieName is the name of the cookie that carries the session
// reference.
const SessionCookieName = "trackdle_session"

// SetSessionCookie issues the session cookie to the client. The cookie's
// lifetime matches the session TTL; the server-side session store remains
// the authority on expiration either way.
func SetSessionCookie(
	w http.ResponseWriter,
	sessionID string,
	maxAgeSeconds int,
) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie from the client.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
