package handlers

import (
	"log"
	"net/http"

	"toolshed/session"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "toolshed_session"

// currentSession returns the caller's session, starting a new one and
// setting the cookie when the request carries no live session.
func currentSession(sessions *session.Manager, w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if s, ok := sessions.Get(c.Value); ok {
			return s
		}
	}
	s := sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Printf("session new     ip=%-15s  id=%s  live=%d", clientIP(r), s.ID, sessions.Len())
	return s
}
