// Package compress encodes response bodies with brotli or gzip, whichever
// the client prefers.
package compress

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

type responseWriter struct {
	http.ResponseWriter
	body io.Writer
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	return rw.body.Write(p)
}

// Middleware negotiates Accept-Encoding and compresses the body. Clients
// that ask for nothing get the identity encoding.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		cw := brotli.HTTPCompressor(w, r)
		defer cw.Close()
		next.ServeHTTP(&responseWriter{ResponseWriter: w, body: cw}, r)
	})
}
