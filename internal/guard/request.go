package guard

import "net/textproto"

// Request is the normalized view of an inbound request. Framework
// adapters construct it; the guard never touches a framework's own
// request type.
type Request struct {
	// ClientIP is the originating client address, already resolved
	// through any trusted proxy headers by the adapter.
	ClientIP string

	Method string
	Path   string

	// Query is the raw query string.
	Query string

	// Headers holds the request headers under canonical MIME keys.
	Headers map[string]string

	// Body is an optional snapshot of the request body for penetration
	// scanning.
	Body string
}

// Header returns the header value for name, canonicalizing the key.
func (r Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	if v, ok := r.Headers[name]; ok {
		return v
	}
	return r.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// UserAgent returns the User-Agent header.
func (r Request) UserAgent() string {
	return r.Header("User-Agent")
}
