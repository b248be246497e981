package middleware

import (
	"log"
	"net/http"
	"time"
)

// statusRecorder captures what the downstream handler wrote
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += n
	return n, err
}

// Logger emits one line per request with method, path, status, body size,
// latency, and the request id
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		log.Printf("[http] %s %s status=%d bytes=%d dur=%s req=%s",
			r.Method, r.URL.Path, rec.status, rec.written,
			time.Since(start).Round(time.Microsecond), GetRequestID(r.Context()))
	})
}
