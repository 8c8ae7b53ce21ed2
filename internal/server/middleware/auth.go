package middleware

import (
	"bytes"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/limitorder/internal/crypto"
)

// Headers of an HMAC-signed request.
const (
	TimestampHeader = "X-LO-Timestamp"
	SignatureHeader = "X-LO-Signature"
)

// maxSignedBody bounds how much of a request body is buffered for HMAC
// verification.
const maxSignedBody = 1 << 20

// Auth returns middleware that requires a valid API key (Bearer token or
// X-API-Key) when apiKeys is non-empty, and a valid request HMAC when
// hmacAuth is non-nil. With neither configured every request passes.
// /api/health is always public.
func Auth(apiKeys []string, hmacAuth *crypto.RequestAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			if len(apiKeys) > 0 {
				token := extractToken(r)
				if token == "" {
					writeJSONError(w, http.StatusUnauthorized, "missing authentication token")
					return
				}
				if !keyMatches(apiKeys, token) {
					writeJSONError(w, http.StatusUnauthorized, "invalid authentication token")
					return
				}
			}

			if hmacAuth != nil {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, "unreadable body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				err = hmacAuth.Verify(r.Header.Get(TimestampHeader), r.Method, r.URL.Path, body,
					r.Header.Get(SignatureHeader), time.Now())
				if err != nil {
					writeJSONError(w, http.StatusUnauthorized, "invalid request signature")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// keyMatches compares token against every key in constant time.
func keyMatches(keys []string, token string) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare([]byte(token), []byte(k))
	}
	return ok == 1
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
