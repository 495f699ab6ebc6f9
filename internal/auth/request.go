package auth

import "net/http"

// Locals keys set by the HTTP layer
const (
	LocalRequestID = "request_id"
	LocalClientIP  = "client_ip"
)

// Request is a single login attempt as seen by the strategy.
type Request struct {
	// Body holds the submitted fields, already decoded from JSON or form data.
	Body map[string]string
	// HTTP is the originating request, nil outside an HTTP server.
	HTTP *http.Request
	// Locals is scratch space shared with request-aware callbacks.
	Locals map[string]any
}

// NewRequest wraps body into a Request with empty Locals.
func NewRequest(body map[string]string) *Request {
	return &Request{
		Body:   body,
		Locals: make(map[string]any),
	}
}

// RequestID returns the request id stored in Locals, if any.
func (r *Request) RequestID() string {
	if r == nil {
		return ""
	}
	id, _ := r.Locals[LocalRequestID].(string)
	return id
}
