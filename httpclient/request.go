package httpclient

// Request describes an outbound HTTP request.
type Request struct {
	Method string
	// Path is appended to the client's BaseURL. Full URLs are used as-is.
	Path    string
	Headers map[string]string
	Query   map[string]string
	// Body accepts *MultipartBody, []byte, string, or any value to be
	// JSON-encoded.
	Body any
	// Auth overrides the client-level auth for this request.
	Auth *AuthConfig
}

// Response is the result of an HTTP request.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
