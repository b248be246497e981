package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/textly/backend/internal/api/response"
)

// Recoverer turns a downstream panic into an opaque 500 instead of killing
// the connection
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Printf("[http] panic req=%s: %v\n%s", GetRequestID(r.Context()), v, debug.Stack())
				response.InternalError(w, "")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
