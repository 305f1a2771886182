package action

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/s3m-go/s3m/digest"
	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

// CreateMultipartUpload initiates a multipart upload and returns the
// upload ID S3 assigns.
type CreateMultipartUpload struct {
	Key                string
	ACL                string
	Meta               map[string]string
	AdditionalChecksum digest.Algorithm
}

func (a CreateMultipartUpload) Method() string        { return http.MethodPost }
func (a CreateMultipartUpload) PathSegments() []string { return []string{a.Key} }
func (a CreateMultipartUpload) QueryPairs() []Pair     { return []Pair{{"uploads", ""}} }
func (a CreateMultipartUpload) Headers() http.Header {
	h := metaHeaders(a.Meta)
	if a.ACL != "" {
		h.Set("x-amz-acl", a.ACL)
	}
	if a.AdditionalChecksum != digest.None {
		h.Set("x-amz-checksum-algorithm", a.AdditionalChecksum.String())
	}
	return h
}

// Do issues the request and returns the assigned upload ID.
func (a CreateMultipartUpload) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) (uploadID string, err error) {
	req := buildRequest(ctx, target, a)
	data, _, err := do(ctx, target, exec, req, transport.NoBody(), nil, true)
	if err != nil {
		return "", err
	}
	var result struct {
		Bucket string `xml:"Bucket"`
		Key    string `xml:"Key"`
		ID     string `xml:"UploadId"`
	}
	if err := xml.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("action: CreateMultipartUpload: decoding response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("action: CreateMultipartUpload: %s", extractMessage(data))
	}
	return result.ID, nil
}

// UploadPart uploads one part of a multipart upload, streaming the
// byte range [Offset, Offset+Length) of File.
type UploadPart struct {
	Key                string
	File               io.ReaderAt
	Number             int
	UploadID           string
	Offset, Length     int64
	SHA256, MD5        []byte // raw digests of the range
	AdditionalChecksum *digest.Checksum
}

func (a UploadPart) Method() string        { return http.MethodPut }
func (a UploadPart) PathSegments() []string { return []string{a.Key} }
func (a UploadPart) QueryPairs() []Pair {
	return []Pair{
		{"partNumber", fmt.Sprintf("%d", a.Number)},
		{"uploadId", a.UploadID},
	}
}
func (a UploadPart) Headers() http.Header {
	h := http.Header{}
	h.Set("Content-MD5", base64Std(a.MD5))
	if a.AdditionalChecksum != nil {
		h.Set("x-amz-checksum-"+lower(a.AdditionalChecksum.Algorithm.String()), a.AdditionalChecksum.Base64())
	}
	return h
}

// Do streams the part and returns its ETag.
func (a UploadPart) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) (etag string, err error) {
	req := buildRequest(ctx, target, a)
	body := transport.FileRangeBody(a.File, a.Offset, a.Length)
	// UploadPart retry is governed by the upload engine, not the
	// executor's own idempotent-GET retry client.
	data, headers, err := doDigest(ctx, target, exec, req, body, hexOf(a.SHA256), false)
	if err != nil {
		return "", err
	}
	etag = headers.Get("ETag")
	if etag == "" {
		return "", fmt.Errorf("action: UploadPart: response missing ETag: %s", extractMessage(data))
	}
	return etag, nil
}

// StreamPart is like UploadPart but the body is an already-spooled,
// already-digested file on disk (used by the stream-transform
// uploader, where the wire bytes differ from the source bytes).
type StreamPart struct {
	Key      string
	Path     string
	Number   int
	UploadID string
	Length   int64
	SHA256   []byte
	MD5      []byte
}

func (a StreamPart) Method() string        { return http.MethodPut }
func (a StreamPart) PathSegments() []string { return []string{a.Key} }
func (a StreamPart) QueryPairs() []Pair {
	return []Pair{
		{"partNumber", fmt.Sprintf("%d", a.Number)},
		{"uploadId", a.UploadID},
	}
}
func (a StreamPart) Headers() http.Header {
	h := http.Header{}
	h.Set("Content-MD5", base64Std(a.MD5))
	return h
}

// Do opens Path, streams it as the part body, and returns the ETag.
func (a StreamPart) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor, open func(string) (io.ReaderAt, func() error, error)) (etag string, err error) {
	ra, closeFn, err := open(a.Path)
	if err != nil {
		return "", err
	}
	defer closeFn()

	req := buildRequest(ctx, target, a)
	body := transport.FileRangeBody(ra, 0, a.Length)
	data, headers, err := doDigest(ctx, target, exec, req, body, hexOf(a.SHA256), false)
	if err != nil {
		return "", err
	}
	etag = headers.Get("ETag")
	if etag == "" {
		return "", fmt.Errorf("action: StreamPart: response missing ETag: %s", extractMessage(data))
	}
	return etag, nil
}

// CompletedPart is one part entry in a CompleteMultipartUpload body.
type CompletedPart struct {
	Number             int
	ETag               string
	AdditionalChecksum *digest.Checksum
}

// CompleteMultipartUpload finalizes a multipart upload from its
// constituent parts, listed in ascending part-number order.
type CompleteMultipartUpload struct {
	Key                string
	UploadID           string
	Parts              []CompletedPart
	AdditionalChecksum digest.Algorithm
	CompositeChecksum  string // base64, pre-computed by the engine
}

func (a CompleteMultipartUpload) Method() string        { return http.MethodPost }
func (a CompleteMultipartUpload) PathSegments() []string { return []string{a.Key} }
func (a CompleteMultipartUpload) QueryPairs() []Pair {
	return []Pair{{"uploadId", a.UploadID}}
}
func (a CompleteMultipartUpload) Headers() http.Header {
	h := http.Header{"Content-Type": []string{"application/xml"}}
	if a.AdditionalChecksum != digest.None && a.CompositeChecksum != "" {
		h.Set("x-amz-checksum-"+lower(a.AdditionalChecksum.String()), a.CompositeChecksum)
	}
	return h
}

type xmlCompletedPart struct {
	CRC32  string `xml:"ChecksumCRC32,omitempty"`
	CRC32C string `xml:"ChecksumCRC32C,omitempty"`
	SHA1   string `xml:"ChecksumSHA1,omitempty"`
	SHA256 string `xml:"ChecksumSHA256,omitempty"`
	ETag   string `xml:"ETag"`
	Number int    `xml:"PartNumber"`
}

// Do finalizes the upload and returns its final ETag.
func (a CompleteMultipartUpload) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) (etag string, err error) {
	sorted := make([]CompletedPart, len(a.Parts))
	copy(sorted, a.Parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	xmlParts := make([]xmlCompletedPart, len(sorted))
	for i, p := range sorted {
		xp := xmlCompletedPart{Number: p.Number, ETag: p.ETag}
		if p.AdditionalChecksum != nil {
			switch p.AdditionalChecksum.Algorithm {
			case digest.CRC32:
				xp.CRC32 = p.AdditionalChecksum.Base64()
			case digest.CRC32C:
				xp.CRC32C = p.AdditionalChecksum.Base64()
			case digest.SHA1:
				xp.SHA1 = p.AdditionalChecksum.Base64()
			case digest.SHA256:
				xp.SHA256 = p.AdditionalChecksum.Base64()
			}
		}
		xmlParts[i] = xp
	}

	buf, err := xml.Marshal(&struct {
		XMLName xml.Name           `xml:"CompleteMultipartUpload"`
		NS      string             `xml:"xmlns,attr"`
		Parts   []xmlCompletedPart `xml:"Part"`
	}{
		NS:    "http://s3.amazonaws.com/doc/2006-03-01/",
		Parts: xmlParts,
	})
	if err != nil {
		return "", err
	}

	req := buildRequest(ctx, target, a)
	data, _, err := do(ctx, target, exec, req, transport.BytesBody(buf), buf, true)
	if err != nil {
		return "", err
	}

	result := struct {
		XMLName xml.Name
		ETag    string `xml:"ETag"`
		Code    string `xml:"Code"`
		Message string `xml:"Message"`
	}{}
	if err := xml.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("action: CompleteMultipartUpload: decoding response: %w", err)
	}
	switch result.XMLName.Local {
	case "Error":
		return "", fmt.Errorf("action: CompleteMultipartUpload: %s %s", result.Code, result.Message)
	case "CompleteMultipartUploadResult":
		return result.ETag, nil
	default:
		return "", fmt.Errorf("action: CompleteMultipartUpload: unexpected response element %s", result.XMLName.Local)
	}
}

// AbortMultipartUpload discards an in-progress multipart upload and
// releases its storage.
type AbortMultipartUpload struct {
	Key      string
	UploadID string
}

func (a AbortMultipartUpload) Method() string        { return http.MethodDelete }
func (a AbortMultipartUpload) PathSegments() []string { return []string{a.Key} }
func (a AbortMultipartUpload) QueryPairs() []Pair {
	return []Pair{{"uploadId", a.UploadID}}
}
func (a AbortMultipartUpload) Headers() http.Header { return http.Header{} }

// Do aborts the upload.
func (a AbortMultipartUpload) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) error {
	req := buildRequest(ctx, target, a)
	_, _, err := do(ctx, target, exec, req, transport.NoBody(), nil, true)
	return err
}

func hexOf(b []byte) string { return hex.EncodeToString(b) }

func base64Std(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func lower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
