// Package location parses the "host/bucket/key" addresses cmd/s3m takes
// as positional arguments, grounded on
// original_source/src/cli/s3_location.rs's S3Location.
package location

import (
	"fmt"
	"regexp"
	"strings"
)

// Location is a parsed "host/bucket/key" address: host names an alias
// in the YAML host config, bucket and key are optional so that `ls`
// with no bucket can list available buckets.
type Location struct {
	Host   string
	Bucket string
	Key    string
}

var bucketPattern = regexp.MustCompile(`^[a-z0-9][.\-a-z0-9]{1,61}[a-z0-9]$`)

// Parse splits location on '/' into at most three fields: host, bucket,
// key. allowMissingBucket permits a bare host (used by `ls` to list
// buckets rather than one bucket's contents).
func Parse(s string, allowMissingBucket bool) (Location, error) {
	parts := strings.SplitN(s, "/", 3)

	host := parts[0]
	if host == "" {
		return Location{}, fmt.Errorf("location: host cannot be empty")
	}

	var bucket string
	switch {
	case len(parts) > 1 && parts[1] != "":
		if err := validateBucketName(parts[1]); err != nil {
			return Location{}, err
		}
		bucket = parts[1]
	case !allowMissingBucket:
		return Location{}, fmt.Errorf("location: bucket name missing, expected format: <host>/<bucket>/<key>")
	}

	var key string
	if len(parts) > 2 {
		if strings.HasPrefix(parts[2], "/") {
			return Location{}, fmt.Errorf("location: remove leading slashes from key")
		}
		if err := validateObjectKey(parts[2]); err != nil {
			return Location{}, err
		}
		key = parts[2]
	}

	return Location{Host: host, Bucket: bucket, Key: key}, nil
}

// validateBucketName applies the AWS bucket naming rules: 3-63
// characters, lowercase alphanumeric/dot/hyphen, starting and ending
// alphanumeric.
func validateBucketName(bucket string) error {
	if len(bucket) < 3 || len(bucket) > 63 {
		return fmt.Errorf("location: invalid bucket name %q: must be 3-63 characters long", bucket)
	}
	if !bucketPattern.MatchString(bucket) {
		return fmt.Errorf("location: invalid bucket name %q: must match [a-z0-9][.-a-z0-9]{1,61}[a-z0-9]", bucket)
	}
	return nil
}

// validateObjectKey rejects keys that are too long or carry a null
// byte; S3 otherwise accepts nearly any Unicode key.
func validateObjectKey(key string) error {
	if len(key) > 1024 {
		return fmt.Errorf("location: object key too long: maximum length is 1024 characters")
	}
	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("location: object key cannot contain null bytes")
	}
	return nil
}
