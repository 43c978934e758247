package auth

import (
	"context"
	"net/http"
	"strings"
)

// CookieName is the session cookie set on sign-in.
const CookieName = "finboard_session"

type contextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// TokenFromRequest reads the session token from the Authorization header or,
// failing that, the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Guard requires a valid session for every path under one of the protected
// prefixes. Other paths pass through, with the principal attached when a
// valid token happens to be present.
func (t *Tokens) Guard(protected []string, onUnauthenticated func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := TokenFromRequest(r); raw != "" {
				if p, err := t.Verify(raw); err == nil {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
					return
				}
			}
			if IsProtected(r.URL.Path, protected) {
				onUnauthenticated(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsProtected reports whether path is one of prefixes or below one.
func IsProtected(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// WantsHTML reports whether the request comes from browser navigation.
func WantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
