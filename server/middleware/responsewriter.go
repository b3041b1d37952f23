package middleware

import "net/http"

// statusWriter records the status code and body size of a response. Flush
// and Unwrap are forwarded so event streams keep flushing through it.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
	sent    bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.sent {
		sw.status, sw.sent = code, true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.sent = true
	n, err := sw.ResponseWriter.Write(b)
	sw.written += int64(n)
	return n, err
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }
