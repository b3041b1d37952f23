package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/speakerhub/logger"
)

var quietPaths = map[string]bool{"/health": true, "/ready": true, "/version": true}

// RequestLogger logs each request with its status and duration. Probe
// endpoints are skipped; event streams are logged when they close.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      sw.status,
				"bytes":       sw.written,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields[logger.FieldRequestID] = id
			}
			if strings.HasSuffix(r.URL.Path, "/events") {
				fields["stream"] = true
			}

			switch {
			case sw.status >= 500:
				log.Error("Request completed", fields)
			case sw.status >= 400:
				log.Warn("Request completed", fields)
			default:
				log.Debug("Request completed", fields)
			}
		})
	}
}
