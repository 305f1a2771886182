// Package transport executes signed HTTP requests against S3-compatible
// endpoints: no-body, in-memory, and file-range bodies, a global
// bandwidth ceiling, and structured decoding of S3's XML error body.
package transport

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// APIError is the decoded S3 <Error> response body.
type APIError struct {
	StatusCode int
	Code       string `xml:"Code"`
	Message    string `xml:"Message"`
	RequestID  string `xml:"RequestId"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("s3: %d %s: %s (request id %s)", e.StatusCode, e.Code, e.Message, e.RequestID)
}

// Retryable reports whether the status code represents a transient
// condition (429, 5xx) worth retrying with backoff.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Executor wraps an *http.Client configured for idempotent-GET retry
// (via retryablehttp) and enforces an optional bandwidth ceiling,
// shared across every concurrent Do call, on outgoing request bodies.
type Executor struct {
	client      *http.Client
	retryClient *retryablehttp.Client
	bytesPerSec int64
	limiter     *rate.Limiter
	log         zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithBandwidthLimit caps outgoing body throughput to bytesPerSec. Zero
// means unlimited.
func WithBandwidthLimit(bytesPerSec int64) Option {
	return func(e *Executor) { e.bytesPerSec = bytesPerSec }
}

// WithLogger attaches a logger for request-level diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// NewExecutor builds an Executor. httpClient may be nil to use a
// default *http.Client with a sane dial/TLS timeout.
func NewExecutor(httpClient *http.Client, opts ...Option) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = 3
	rc.Logger = nil
	// Hand back the last response once retries run out, so Do can decode
	// its <Error> body into an *APIError.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	e := &Executor{
		client:      httpClient,
		retryClient: rc,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bytesPerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(e.bytesPerSec), int(e.bytesPerSec))
	}
	return e
}

// bodyKind tags which of the three body shapes a request carries.
type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyBytes
	bodyFileRange
)

// Body describes the request payload in one of the three forms the
// specification allows: none, an in-memory byte slice, or a byte range
// of a file read lazily so the whole range never sits in memory.
type Body struct {
	kind   bodyKind
	bytes  []byte
	ra     io.ReaderAt
	offset int64
	length int64
}

// NoBody is an empty request body.
func NoBody() Body { return Body{kind: bodyNone} }

// BytesBody wraps an in-memory payload.
func BytesBody(b []byte) Body { return Body{kind: bodyBytes, bytes: b} }

// FileRangeBody streams [offset, offset+length) of ra without
// buffering the whole range in memory.
func FileRangeBody(ra io.ReaderAt, offset, length int64) Body {
	return Body{kind: bodyFileRange, ra: ra, offset: offset, length: length}
}

func (b Body) Len() int64 {
	switch b.kind {
	case bodyBytes:
		return int64(len(b.bytes))
	case bodyFileRange:
		return b.length
	default:
		return 0
	}
}

func (b Body) reader() io.Reader {
	switch b.kind {
	case bodyBytes:
		return bytes.NewReader(b.bytes)
	case bodyFileRange:
		return io.NewSectionReader(b.ra, b.offset, b.length)
	default:
		return http.NoBody
	}
}

// throttleReader draws permits from an Executor-wide *rate.Limiter
// before releasing bytes, so the configured bandwidth ceiling holds
// across all requests in flight rather than being re-granted to each
// one independently.
type throttleReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttleReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 && t.limiter != nil {
		burst := t.limiter.Burst()
		for remaining := n; remaining > 0; {
			take := remaining
			if take > burst {
				take = burst
			}
			if werr := t.limiter.WaitN(t.ctx, take); werr != nil {
				return n, werr
			}
			remaining -= take
		}
	}
	return n, err
}

// Do sends req (already signed) with the given body, returning the
// raw *http.Response on success (2xx). Non-2xx responses are decoded
// into an *APIError and returned as the error. idempotent controls
// whether the underlying retryablehttp client may retry on transport
// failure or 5xx -- set false for UploadPart/StreamPart, whose retry
// is governed by the upload engine itself to avoid double-retry.
func (e *Executor) Do(ctx context.Context, req *http.Request, body Body, idempotent bool) (*http.Response, error) {
	r := body.reader()
	if e.limiter != nil {
		r = &throttleReader{ctx: ctx, r: r, limiter: e.limiter}
	}
	req = req.WithContext(ctx)
	req.ContentLength = body.Len()
	req.Body = io.NopCloser(r)

	var resp *http.Response
	var err error
	if idempotent {
		rreq, rerr := retryablehttp.FromRequest(req)
		if rerr != nil {
			return nil, rerr
		}
		resp, err = e.retryClient.Do(rreq)
	} else {
		resp, err = e.client.Do(req)
	}
	if err != nil {
		return nil, fmt.Errorf("transport: %s %s: %w", req.Method, req.URL, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	apiErr := &APIError{StatusCode: resp.StatusCode}
	_ = xml.NewDecoder(resp.Body).Decode(apiErr)
	return resp, apiErr
}
