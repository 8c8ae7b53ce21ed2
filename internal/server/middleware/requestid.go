package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an id, reusing a client-supplied
// X-Request-ID when it is a valid UUID. The id is echoed in the response and
// stored in the request context for the audit log.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(domain.WithRequestID(r.Context(), id)))
		})
	}
}
