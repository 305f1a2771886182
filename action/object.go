package action

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/s3m-go/s3m/digest"
	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

// PutObject uploads an entire object in a single request.
type PutObject struct {
	Key                string
	Body               []byte
	SHA256, MD5        []byte
	ACL                string
	Meta               map[string]string
	AdditionalChecksum *digest.Checksum
}

func (a PutObject) Method() string        { return http.MethodPut }
func (a PutObject) PathSegments() []string { return []string{a.Key} }
func (a PutObject) QueryPairs() []Pair     { return nil }
func (a PutObject) Headers() http.Header {
	h := metaHeaders(a.Meta)
	h.Set("Content-MD5", base64Std(a.MD5))
	if a.ACL != "" {
		h.Set("x-amz-acl", a.ACL)
	}
	if a.AdditionalChecksum != nil {
		h.Set("x-amz-checksum-"+lower(a.AdditionalChecksum.Algorithm.String()), a.AdditionalChecksum.Base64())
	}
	return h
}

// Result is the ETag (and optional version ID) S3 returns for a
// successful write.
type Result struct {
	ETag      string
	VersionID string
}

// Do uploads the body and returns the resulting ETag.
func (a PutObject) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) (Result, error) {
	req := buildRequest(ctx, target, a)
	_, headers, err := doDigest(ctx, target, exec, req, transport.BytesBody(a.Body), hexOf(a.SHA256), true)
	if err != nil {
		return Result{}, err
	}
	etag := headers.Get("ETag")
	if etag == "" {
		return Result{}, fmt.Errorf("action: PutObject: response missing ETag")
	}
	return Result{ETag: etag, VersionID: headers.Get("x-amz-version-id")}, nil
}

// HeadObject retrieves an object's metadata without its body.
type HeadObject struct {
	Key string
}

func (a HeadObject) Method() string        { return http.MethodHead }
func (a HeadObject) PathSegments() []string { return []string{a.Key} }
func (a HeadObject) QueryPairs() []Pair     { return nil }
func (a HeadObject) Headers() http.Header   { return http.Header{} }

// Metadata is what HeadObject/GetObject surface about an object.
type Metadata struct {
	ETag         string
	Size         int64
	LastModified string
	ContentType  string
}

// Do issues the HEAD request and parses the returned metadata headers.
func (a HeadObject) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) (Metadata, error) {
	req := buildRequest(ctx, target, a)
	_, headers, err := do(ctx, target, exec, req, transport.NoBody(), nil, true)
	if err != nil {
		return Metadata{}, err
	}
	var size int64
	fmt.Sscanf(headers.Get("Content-Length"), "%d", &size)
	return Metadata{
		ETag:         headers.Get("ETag"),
		Size:         size,
		LastModified: headers.Get("Last-Modified"),
		ContentType:  headers.Get("Content-Type"),
	}, nil
}

// GetObject retrieves an object, or a byte range of it when Start/End
// are non-zero.
type GetObject struct {
	Key        string
	Start, End int64 // End == 0 means "to the end of the object"
}

func (a GetObject) Method() string        { return http.MethodGet }
func (a GetObject) PathSegments() []string { return []string{a.Key} }
func (a GetObject) QueryPairs() []Pair     { return nil }
func (a GetObject) Headers() http.Header {
	h := http.Header{}
	if a.Start != 0 || a.End != 0 {
		if a.End > 0 {
			h.Set("Range", fmt.Sprintf("bytes=%d-%d", a.Start, a.End-1))
		} else {
			h.Set("Range", fmt.Sprintf("bytes=%d-", a.Start))
		}
	}
	return h
}

// Do issues the GET and returns the response body reader (caller must
// close it) along with the response metadata.
func (a GetObject) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) (io.ReadCloser, Metadata, error) {
	req := buildRequest(ctx, target, a)
	if err := target.Key.SignHTTP(req, nil); err != nil {
		return nil, Metadata{}, err
	}
	resp, err := exec.Do(ctx, req, transport.NoBody(), true)
	if err != nil {
		return nil, Metadata{}, err
	}
	var size int64
	fmt.Sscanf(resp.Header.Get("Content-Length"), "%d", &size)
	return resp.Body, Metadata{
		ETag:         resp.Header.Get("ETag"),
		Size:         size,
		LastModified: resp.Header.Get("Last-Modified"),
		ContentType:  resp.Header.Get("Content-Type"),
	}, nil
}

// DeleteObject removes an object.
type DeleteObject struct {
	Key string
}

func (a DeleteObject) Method() string        { return http.MethodDelete }
func (a DeleteObject) PathSegments() []string { return []string{a.Key} }
func (a DeleteObject) QueryPairs() []Pair     { return nil }
func (a DeleteObject) Headers() http.Header   { return http.Header{} }

// Do deletes the object.
func (a DeleteObject) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) error {
	req := buildRequest(ctx, target, a)
	_, _, err := do(ctx, target, exec, req, transport.NoBody(), nil, true)
	return err
}

// PutObjectAcl sets a canned ACL on an existing object.
type PutObjectAcl struct {
	Key string
	ACL string
}

func (a PutObjectAcl) Method() string        { return http.MethodPut }
func (a PutObjectAcl) PathSegments() []string { return []string{a.Key} }
func (a PutObjectAcl) QueryPairs() []Pair     { return []Pair{{"acl", ""}} }
func (a PutObjectAcl) Headers() http.Header {
	h := http.Header{}
	h.Set("x-amz-acl", a.ACL)
	return h
}

// Do applies the ACL.
func (a PutObjectAcl) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) error {
	req := buildRequest(ctx, target, a)
	_, _, err := do(ctx, target, exec, req, transport.NoBody(), nil, true)
	return err
}

// GetObjectAcl retrieves an object's access control list.
type GetObjectAcl struct {
	Key string
}

func (a GetObjectAcl) Method() string        { return http.MethodGet }
func (a GetObjectAcl) PathSegments() []string { return []string{a.Key} }
func (a GetObjectAcl) QueryPairs() []Pair     { return []Pair{{"acl", ""}} }
func (a GetObjectAcl) Headers() http.Header   { return http.Header{} }

// Grant is one ACL grant entry.
type Grant struct {
	Grantee    string `xml:"Grantee>ID"`
	Permission string `xml:"Permission"`
}

// Do fetches and decodes the object's ACL.
func (a GetObjectAcl) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) ([]Grant, error) {
	req := buildRequest(ctx, target, a)
	data, _, err := do(ctx, target, exec, req, transport.NoBody(), nil, true)
	if err != nil {
		return nil, err
	}
	var result struct {
		Grants []Grant `xml:"AccessControlList>Grant"`
	}
	if err := xml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("action: GetObjectAcl: decoding response: %w", err)
	}
	return result.Grants, nil
}
