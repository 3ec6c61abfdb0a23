package api

import (
	"context"
	"log"
	"net/http"

	"taskviewer/pkg/authority"
)

type principalKey struct{}

// principal returns the authenticated caller stored by authed.
func principal(ctx context.Context) authority.Principal {
	p, _ := ctx.Value(principalKey{}).(authority.Principal)
	return p
}

// authed checks HTTP Basic credentials against the user store before
// calling next with the caller's Principal in the request context.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, pass, ok := r.BasicAuth()
		if !ok {
			unauthorized(w)
			return
		}
		u, err := s.users.ByUsername(r.Context(), name)
		if err != nil {
			log.Printf("api: authenticate %q: %v", name, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if u == nil || !u.CheckPassword(pass) {
			unauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, u.Principal())
		next(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="taskviewer"`)
	writeError(w, http.StatusUnauthorized, "authentication required")
}
