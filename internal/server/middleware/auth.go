// Package middleware holds HTTP middleware shared by the server's protected routes.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

// SubjectVerifier checks a bearer token and returns the client it names
type SubjectVerifier interface {
	Subject(token string) (string, error)
}

// RequireBearer rejects requests without a valid bearer token and stores the
// token subject in the request context.
func RequireBearer(verifier SubjectVerifier, realm string) func(http.Handler) http.Handler {
	challenge := `Bearer realm="` + realm + `"`
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := authenticate(verifier, r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", challenge)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, subject)))
		})
	}
}

func authenticate(verifier SubjectVerifier, header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	subject, err := verifier.Subject(token)
	if err != nil || subject == "" {
		return "", false
	}
	return subject, true
}

// Subject returns the authenticated client of a request, if any
func Subject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(contextKey{}).(string)
	return subject, ok
}
