// Package s3m carries the destination a request is aimed at: the
// signing key, bucket, and endpoint scheme/host, mirroring the fields
// the teacher's uploader/bucket types thread through every request
// builder.
package s3m

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"

	"github.com/s3m-go/s3m/aws"
)

// Target names one upload/download destination: a bucket on an
// endpoint, reached with a given signing key.
type Target struct {
	Key    *aws.SigningKey
	Bucket string
	Scheme string
	Host   string
}

// New derives Scheme/Host from key.BaseURI (path-style, custom
// endpoint) or key.Region (virtual-hosted AWS endpoint).
func New(key *aws.SigningKey, bucket string) *Target {
	t := &Target{Key: key, Bucket: bucket}
	if key.BaseURI != "" {
		u, err := url.Parse(key.BaseURI)
		if err == nil {
			t.Scheme = u.Scheme
			t.Host = u.Host
		}
	}
	if t.Scheme == "" {
		t.Scheme = "https"
	}
	if t.Host == "" {
		t.Host = key.Endpoint()
	}
	return t
}

// PathStyle reports whether requests must be addressed
// scheme://host/bucket/key (custom endpoint) rather than the
// virtual-hosted scheme://bucket.host/key (plain AWS).
func (t *Target) PathStyle() bool {
	return t.Key.BaseURI != ""
}

// Hash returns the first 8 hex characters of sha256(accessKey ||
// region || bucket), the catalog session-key prefix of spec.md §3 that
// keeps the same local file's resume state disjoint across
// destinations.
func (t *Target) Hash() [8]byte {
	sum := sha256.Sum256([]byte(t.Key.AccessKey + "\x00" + t.Key.Region + "\x00" + t.Bucket))
	var out [8]byte
	copy(out[:], []byte(hex.EncodeToString(sum[:]))[:8])
	return out
}
