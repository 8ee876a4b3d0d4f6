// Package httpmw adapts the guard to net/http: it builds the normalized
// request view from an *http.Request, enforces the decision, and reports
// the response outcome back to the guard.
package httpmw

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/py-daily/pywebguard/internal/guard"
)

// maxBodySnapshot caps how much of the body is buffered for scanning.
const maxBodySnapshot = 64 << 10

// Options configures the middleware.
type Options struct {
	// TrustProxyHeaders resolves the client IP from X-Forwarded-For /
	// X-Real-IP. Enable only behind a proxy that strips inbound copies of
	// those headers, otherwise clients can spoof their address.
	TrustProxyHeaders bool

	// SnapshotBody buffers up to 64 KiB of the request body so the
	// penetration detector can scan it. The handler still receives the
	// full body.
	SnapshotBody bool
}

// denialBody is the JSON payload written on a denied request.
type denialBody struct {
	Detail string        `json:"detail"`
	Reason *guard.Reason `json:"reason,omitempty"`
}

// Middleware returns a handler wrapper enforcing g's decisions. Denied
// requests get a 403 with a JSON body and never reach the next handler.
func Middleware(g *guard.Guard, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := FromHTTP(r, opts)

			dec := g.CheckContext(r.Context(), req)
			if !dec.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(denialBody{
					Detail: "Request blocked by security policy",
					Reason: dec.Reason,
				})
				g.UpdateMetrics(r.Context(), req, http.StatusForbidden)
				return
			}
			if dec.Remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			g.UpdateMetrics(r.Context(), req, rec.status)
		})
	}
}

// FromHTTP builds the guard's request view from an *http.Request.
func FromHTTP(r *http.Request, opts Options) guard.Request {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	// Scan the decoded query so percent- and plus-encoded payloads are
	// seen in cleartext; fall back to the raw string on bad escapes.
	query := r.URL.RawQuery
	if decoded, err := url.QueryUnescape(query); err == nil {
		query = decoded
	}

	req := guard.Request{
		ClientIP: clientIP(r, opts.TrustProxyHeaders),
		Method:   r.Method,
		Path:     r.URL.Path,
		Query:    query,
		Headers:  headers,
	}

	if opts.SnapshotBody && r.Body != nil && r.Body != http.NoBody {
		snapshot, rest, err := snapshotBody(r.Body)
		if err == nil {
			req.Body = snapshot
			r.Body = rest
		}
	}
	return req
}

// snapshotBody reads up to maxBodySnapshot bytes and returns a reader
// that replays the full body to the handler.
func snapshotBody(body io.ReadCloser) (string, io.ReadCloser, error) {
	buf := make([]byte, maxBodySnapshot)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", body, err
	}
	replay := io.MultiReader(bytes.NewReader(buf[:n]), body)
	return string(buf[:n]), readCloser{replay, body}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// clientIP resolves the originating address. With trusted proxy headers
// the first X-Forwarded-For hop wins, then X-Real-IP; otherwise the TCP
// peer address is used.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if first, _, found := strings.Cut(xff, ","); found || first != "" {
				return strings.TrimSpace(first)
			}
		}
		if rip := r.Header.Get("X-Real-IP"); rip != "" {
			return strings.TrimSpace(rip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusRecorder captures the status code the handler wrote. Flushing
// and hijacking pass through so streaming and upgraded responses keep
// working behind the wrapper.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Unwrap supports http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
