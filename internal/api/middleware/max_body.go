package middleware

import (
	"net/http"

	"github.com/cloo-solutions/studyforge/internal/api"
)

// MaxBodyBytes caps the request body at limit bytes. A declared Content-Length
// over the cap is answered with 413 before the handler runs; chunked bodies
// fail on the first read past it. A limit <= 0 disables the cap.
//
// Routers mount this per route group rather than globally: http.MaxBytesReader
// can only shrink a limit, so the document upload route needs its own, larger
// cap taken from MAX_UPLOAD_BYTES.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Body == nil || r.Body == http.NoBody:
			case r.ContentLength > limit:
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			default:
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
