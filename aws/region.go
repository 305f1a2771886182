package aws

import "fmt"

// Region selects the signing scope and endpoint host for a request.
// It mirrors the specification's tagged variant: an AWS-hosted region
// (endpoint derived from the name) or a custom S3-compatible endpoint
// with an explicit name used only for the signing scope.
type Region interface {
	// Name is the region name used in the credential scope
	// (yyyymmdd/{name}/s3/aws4_request).
	Name() string
	// Endpoint is the host header value the signer uses verbatim.
	Endpoint() string
}

// AWSRegion is a region hosted by AWS, whose endpoint is derived from
// its name: s3.{name}.amazonaws.com.
type AWSRegion struct {
	RegionName string
}

func (r AWSRegion) Name() string { return r.RegionName }
func (r AWSRegion) Endpoint() string {
	return fmt.Sprintf("s3.%s.amazonaws.com", r.RegionName)
}

// CustomRegion is a non-AWS or path-style S3-compatible endpoint, such
// as MinIO or Ceph RGW. Name still participates in the signing scope
// even though Endpoint is an arbitrary host.
type CustomRegion struct {
	RegionName string
	Host       string
}

func (r CustomRegion) Name() string     { return r.RegionName }
func (r CustomRegion) Endpoint() string { return r.Host }
