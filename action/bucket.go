package action

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

// ObjectInfo is one entry in a ListObjectsV2 response.
type ObjectInfo struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

// ListObjectsV2 lists the keys (optionally grouped into common
// prefixes by Delimiter) under Prefix.
type ListObjectsV2 struct {
	Prefix            string
	Delimiter         string
	StartAfter        string
	ContinuationToken string
	MaxKeys           int
}

func (a ListObjectsV2) Method() string        { return http.MethodGet }
func (a ListObjectsV2) PathSegments() []string { return nil }
func (a ListObjectsV2) QueryPairs() []Pair {
	pairs := []Pair{{"list-type", "2"}, {"prefix", a.Prefix}}
	if a.Delimiter != "" {
		pairs = append(pairs, Pair{"delimiter", a.Delimiter})
	}
	if a.StartAfter != "" {
		pairs = append(pairs, Pair{"start-after", a.StartAfter})
	}
	if a.ContinuationToken != "" {
		pairs = append(pairs, Pair{"continuation-token", a.ContinuationToken})
	}
	if a.MaxKeys > 0 {
		pairs = append(pairs, Pair{"max-keys", fmt.Sprintf("%d", a.MaxKeys)})
	}
	return pairs
}
func (a ListObjectsV2) Headers() http.Header { return http.Header{} }

// ListObjectsV2Result is the decoded listing response.
type ListObjectsV2Result struct {
	Contents       []ObjectInfo `xml:"Contents"`
	CommonPrefixes []string     `xml:"CommonPrefixes>Prefix"`
	IsTruncated    bool         `xml:"IsTruncated"`
	NextToken      string       `xml:"NextContinuationToken"`
}

// Do lists the bucket contents matching the query.
func (a ListObjectsV2) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) (ListObjectsV2Result, error) {
	req := buildRequest(ctx, target, a)
	data, _, err := do(ctx, target, exec, req, transport.NoBody(), nil, true)
	if err != nil {
		return ListObjectsV2Result{}, err
	}
	var result ListObjectsV2Result
	if err := xml.Unmarshal(data, &result); err != nil {
		return ListObjectsV2Result{}, fmt.Errorf("action: ListObjectsV2: decoding response: %w", err)
	}
	return result, nil
}

// MultipartUploadInfo is one in-progress upload reported by
// ListMultipartUploads.
type MultipartUploadInfo struct {
	Key      string `xml:"Key"`
	UploadID string `xml:"UploadId"`
	Initiated string `xml:"Initiated"`
}

// ListMultipartUploads lists in-progress multipart uploads, used to
// find dangling sessions left by a crashed or abandoned upload.
type ListMultipartUploads struct {
	Prefix string
}

func (a ListMultipartUploads) Method() string        { return http.MethodGet }
func (a ListMultipartUploads) PathSegments() []string { return nil }
func (a ListMultipartUploads) QueryPairs() []Pair {
	pairs := []Pair{{"uploads", ""}}
	if a.Prefix != "" {
		pairs = append(pairs, Pair{"prefix", a.Prefix})
	}
	return pairs
}
func (a ListMultipartUploads) Headers() http.Header { return http.Header{} }

// Do lists in-progress uploads.
func (a ListMultipartUploads) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) ([]MultipartUploadInfo, error) {
	req := buildRequest(ctx, target, a)
	data, _, err := do(ctx, target, exec, req, transport.NoBody(), nil, true)
	if err != nil {
		return nil, err
	}
	var result struct {
		Uploads []MultipartUploadInfo `xml:"Upload"`
	}
	if err := xml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("action: ListMultipartUploads: decoding response: %w", err)
	}
	return result.Uploads, nil
}

// CreateBucket creates a new bucket, optionally pinned to a region
// other than the signing key's.
type CreateBucket struct {
	Region string
}

func (a CreateBucket) Method() string        { return http.MethodPut }
func (a CreateBucket) PathSegments() []string { return nil }
func (a CreateBucket) QueryPairs() []Pair     { return nil }
func (a CreateBucket) Headers() http.Header   { return http.Header{} }

// Do creates the bucket.
func (a CreateBucket) Do(ctx context.Context, target *s3m.Target, exec *transport.Executor) error {
	var body []byte
	if a.Region != "" && a.Region != "us-east-1" {
		var err error
		body, err = xml.Marshal(&struct {
			XMLName            xml.Name `xml:"CreateBucketConfiguration"`
			NS                 string   `xml:"xmlns,attr"`
			LocationConstraint string
		}{
			NS:                 "http://s3.amazonaws.com/doc/2006-03-01/",
			LocationConstraint: a.Region,
		})
		if err != nil {
			return err
		}
	}
	req := buildRequest(ctx, target, a)
	_, _, err := do(ctx, target, exec, req, transport.BytesBody(body), body, true)
	return err
}
