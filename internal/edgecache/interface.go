// Package edgecache is the response cache in front of the image transformer.
// Entries are whole responses keyed by request identity.
package edgecache

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// CachedResponse is a stored response, replayed verbatim on a hit.
type CachedResponse struct {
	Key      string      `msgpack:"key"`
	Status   int         `msgpack:"status"`
	Header   http.Header `msgpack:"header"`
	Body     []byte      `msgpack:"body"`
	StoredAt time.Time   `msgpack:"stored_at"`
}

func (r *CachedResponse) clone() *CachedResponse {
	out := *r
	out.Header = r.Header.Clone()
	return &out
}

type Cache interface {
	// Match returns the entry for key, or false on a miss. Read failures count
	// as misses.
	Match(ctx context.Context, key string) (*CachedResponse, bool)
	Put(ctx context.Context, key string, resp *CachedResponse) error
}

// RequestKey derives the cache key from the request: method, absolute URL and
// the values of the vary headers. HEAD shares the GET entry.
func RequestKey(r *http.Request, vary ...string) string {
	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		scheme = proto
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(r.Host)
	b.WriteString(r.URL.RequestURI())
	for _, name := range vary {
		b.WriteByte('\n')
		b.WriteString(http.CanonicalHeaderKey(name))
		b.WriteString(": ")
		b.WriteString(strings.Join(r.Header.Values(name), ","))
	}
	return b.String()
}
