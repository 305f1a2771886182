// Copyright 2023 Sneller, Inc.
// Copyright 2025 Roman Atachiants
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package aws

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const metadataBase = "http://169.254.169.254"

// imdsToken fetches a short-lived IMDSv2 session token, required
// before any meta-data path can be read on instances that enforce
// token-based access.
func imdsToken() (string, error) {
	req, err := http.NewRequest(http.MethodPut, metadataBase+"/latest/api/token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-aws-ec2-metadata-token-ttl-seconds", "21600")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("aws: fetching IMDSv2 token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("aws: IMDSv2 token request: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func metadataGet(path string) ([]byte, error) {
	token, err := imdsToken()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodGet, metadataBase+"/latest/meta-data/"+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Aws-Ec2-Metadata-Token", token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aws: metadata request for %q: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aws: metadata request for %q: unexpected status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// MetadataString reads a plain-text EC2 instance metadata value at
// the given path (relative to /latest/meta-data/).
func MetadataString(path string) (string, error) {
	body, err := metadataGet(path)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// MetadataJSON reads and JSON-decodes an EC2 instance metadata
// document at the given path into out.
func MetadataJSON(path string, out any) error {
	body, err := metadataGet(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// ec2Region derives the region this instance is running in from its
// availability zone (the AZ's trailing letter is stripped).
func ec2Region() (string, error) {
	az, err := MetadataString("placement/availability-zone")
	if err != nil {
		return "", err
	}
	az = strings.TrimSpace(az)
	if len(az) < 2 {
		return "", fmt.Errorf("aws: unexpected availability zone %q", az)
	}
	return az[:len(az)-1], nil
}

// S3EndPoint returns the https endpoint for region, honoring the
// S3_ENDPOINT environment variable override used for S3-compatible
// (e.g. MinIO) deployments. The trailing slash, if any, is stripped.
func S3EndPoint(region string) string {
	if ep := os.Getenv("S3_ENDPOINT"); ep != "" {
		return strings.TrimRight(ep, "/")
	}
	return "https://" + AWSRegion{RegionName: region}.Endpoint()
}

// B2EndPoint returns the Backblaze B2 S3-compatible endpoint for region.
func B2EndPoint(region string) string {
	return fmt.Sprintf("https://s3.%s.backblazeb2.com", region)
}
