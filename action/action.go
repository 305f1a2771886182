// Package action gives each S3 wire operation its own typed value:
// the method, path segments, query parameters and headers it needs,
// plus a Do method that signs and executes it against a target bucket.
package action

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

// Pair is one ordered query parameter.
type Pair struct{ Key, Value string }

// Action is the shape every S3 operation value implements so a
// generic request builder can sign and dispatch it.
type Action interface {
	Method() string
	PathSegments() []string
	QueryPairs() []Pair
	Headers() http.Header
}

// pathEscape mirrors the teacher's almostPathEscape: percent-encode
// everything reserved except '/'.
func pathEscape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-' || c == '.' || c == '_' || c == '~' || c == '/':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func queryString(pairs []Pair) string {
	sorted := make([]Pair, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	vals := url.Values{}
	for _, p := range sorted {
		vals.Add(p.Key, p.Value)
	}
	return vals.Encode()
}

// buildRequest constructs the *http.Request for act against target,
// addressing it virtual-hosted (bucket.host) or path-style
// (host/bucket) per target.PathStyle(), exactly like the teacher's
// uploader.go:req.
func buildRequest(ctx context.Context, target *s3m.Target, act Action) *http.Request {
	segments := act.PathSegments()
	joined := strings.Join(segments, "/")

	u := url.URL{
		Scheme:   target.Scheme,
		RawQuery: queryString(act.QueryPairs()),
	}
	if target.PathStyle() {
		u.Path = "/" + target.Bucket + "/" + joined
		u.RawPath = "/" + target.Bucket + "/" + pathEscape(joined)
		u.Host = target.Host
	} else {
		u.Path = "/" + joined
		u.RawPath = "/" + pathEscape(joined)
		u.Host = target.Bucket + "." + target.Host
	}

	req, _ := http.NewRequestWithContext(ctx, act.Method(), u.String(), nil)
	for name, vals := range act.Headers() {
		for _, v := range vals {
			req.Header.Add(name, v)
		}
	}
	return req
}

// do signs req with body (digest computed from contents) and sends it
// through exec, returning the response body bytes on success.
// idempotent controls whether the executor's retry client handles
// transport-level retries (see transport.Executor.Do).
func do(ctx context.Context, target *s3m.Target, exec *transport.Executor, req *http.Request, body transport.Body, contents []byte, idempotent bool) ([]byte, http.Header, error) {
	if err := target.Key.SignHTTP(req, contents); err != nil {
		return nil, nil, err
	}
	resp, err := exec.Do(ctx, req, body, idempotent)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("action: reading response body: %w", err)
	}
	return data, resp.Header, nil
}

// doDigest is like do but signs with a precomputed sha256 digest
// instead of buffering contents, for file-range and spool-file bodies.
func doDigest(ctx context.Context, target *s3m.Target, exec *transport.Executor, req *http.Request, body transport.Body, sha256Hex string, idempotent bool) ([]byte, http.Header, error) {
	if err := target.Key.SignHTTPDigest(req, sha256Hex); err != nil {
		return nil, nil, err
	}
	resp, err := exec.Do(ctx, req, body, idempotent)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("action: reading response body: %w", err)
	}
	return data, resp.Header, nil
}

func extractMessage(data []byte) string {
	rt := struct {
		Message string `xml:"Message"`
	}{}
	if xml.Unmarshal(data, &rt) == nil && rt.Message != "" {
		return rt.Message
	}
	return "(no message)"
}

func metaHeaders(meta map[string]string) http.Header {
	h := http.Header{}
	for k, v := range meta {
		h.Set("x-amz-meta-"+k, v)
	}
	return h
}
