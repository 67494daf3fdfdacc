package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapVerifier map[string]string

func (m mapVerifier) Subject(token string) (string, error) {
	subject, ok := m[token]
	if !ok {
		return "", errors.New("invalid token")
	}
	return subject, nil
}

func serve(verifier SubjectVerifier, authHeader string) (*httptest.ResponseRecorder, bool, string) {
	called := false
	var subject string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		subject, _ = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/applications", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	RequireBearer(verifier, "test")(handler).ServeHTTP(w, req)
	return w, called, subject
}

func TestRequireBearer_ValidToken(t *testing.T) {
	verifier := mapVerifier{"valid-token": "ci-bot"}

	for _, header := range []string{"Bearer valid-token", "bearer valid-token", "BeArEr   valid-token"} {
		t.Run(header, func(t *testing.T) {
			w, called, subject := serve(verifier, header)
			assert.True(t, called)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "ci-bot", subject)
		})
	}
}

func TestRequireBearer_Rejects(t *testing.T) {
	verifier := mapVerifier{"valid-token": "ci-bot", "no-subject": ""}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"missing Bearer prefix", "valid-token"},
		{"only Bearer", "Bearer"},
		{"wrong scheme", "Basic valid-token"},
		{"extra parts", "Bearer valid-token extra"},
		{"unknown token", "Bearer other-token"},
		{"empty subject", "Bearer no-subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, called, _ := serve(verifier, tt.header)
			assert.False(t, called, "handler should not be called")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Bearer realm="test"`, w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestSubject_Missing(t *testing.T) {
	_, ok := Subject(context.Background())
	assert.False(t, ok)
}
