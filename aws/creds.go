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
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// scanspec binds an ini key prefix to a destination string pointer for scan.
type scanspec struct {
	prefix string
	dst    *string
}

// scan reads an ini-style credentials/config file from r and fills in
// each spec's destination with the value found under [section], the
// first matching key winning. Lines without '=' and empty values are
// ignored; keys and values are trimmed of surrounding whitespace.
func scan(r io.Reader, section string, specs []scanspec) error {
	sc := bufio.NewScanner(r)
	inSection := false
	filled := make([]bool, len(specs))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inSection = strings.TrimSpace(line[1:len(line)-1]) == section
			continue
		}
		if !inSection {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if val == "" {
			continue
		}
		for i, spec := range specs {
			if !filled[i] && spec.prefix == key {
				*spec.dst = val
				filled[i] = true
			}
		}
	}
	return sc.Err()
}

// loadCredentials reads aws_access_key_id and aws_secret_access_key
// for profile out of the shared credentials file at path.
func loadCredentials(path, profile string) (id, secret string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	specs := []scanspec{
		{prefix: "aws_access_key_id", dst: &id},
		{prefix: "aws_secret_access_key", dst: &secret},
	}
	if err := scan(f, profile, specs); err != nil {
		return "", "", err
	}
	if id == "" || secret == "" {
		return "", "", fmt.Errorf("aws: no credentials found for profile %q in %s", profile, path)
	}
	return id, secret, nil
}

// AmbientCreds resolves credentials the way the AWS CLI does for a
// plain shell session: environment variables first, then the shared
// credentials file (./.aws/credentials, falling back to
// ~/.aws/credentials), under the "default" profile. region, when
// non-empty, is returned verbatim when no region env var is set.
func AmbientCreds(region string) (id, secret, outRegion, token string, err error) {
	id = os.Getenv("AWS_ACCESS_KEY_ID")
	secret = os.Getenv("AWS_SECRET_ACCESS_KEY")
	token = os.Getenv("AWS_SESSION_TOKEN")
	outRegion = firstNonEmpty(os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION"), region)

	if id != "" && secret != "" {
		return id, secret, outRegion, token, nil
	}

	for _, path := range credentialPaths() {
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		id, secret, err = loadCredentials(path, "default")
		if err == nil {
			return id, secret, outRegion, token, nil
		}
	}
	return "", "", "", "", fmt.Errorf("aws: no credentials found in environment or credentials file")
}

func credentialPaths() []string {
	var paths []string
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, ".aws", "credentials"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".aws", "credentials"))
	}
	return paths
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

// stsAssumeRoleResponse mirrors the subset of the STS
// AssumeRoleWithWebIdentity response this package needs.
type stsAssumeRoleResponse struct {
	XMLName xml.Name `xml:"AssumeRoleWithWebIdentityResponse"`
	Result  struct {
		Credentials struct {
			AccessKeyId     string `xml:"AccessKeyId"`
			SecretAccessKey string `xml:"SecretAccessKey"`
			SessionToken    string `xml:"SessionToken"`
			Expiration      string `xml:"Expiration"`
		} `xml:"Credentials"`
	} `xml:"AssumeRoleWithWebIdentityResult"`
}

// WebIdentityCreds exchanges a Kubernetes/OIDC web identity token
// (the AWS_WEB_IDENTITY_TOKEN_FILE convention used by IRSA and similar
// federation setups) for temporary credentials via STS
// AssumeRoleWithWebIdentity. client may be nil to use
// http.DefaultClient.
func WebIdentityCreds(client *http.Client) (id, secret, region, token string, expiration time.Time, err error) {
	region = os.Getenv("AWS_REGION")
	roleArn := os.Getenv("AWS_ROLE_ARN")
	tokenFile := os.Getenv("AWS_WEB_IDENTITY_TOKEN_FILE")
	sessionName := os.Getenv("AWS_ROLE_SESSION_NAME")
	if sessionName == "" {
		sessionName = "s3m"
	}
	if roleArn == "" || tokenFile == "" {
		return "", "", "", "", time.Time{}, fmt.Errorf("aws: AWS_ROLE_ARN and AWS_WEB_IDENTITY_TOKEN_FILE must be set")
	}
	tokenBytes, err := os.ReadFile(tokenFile)
	if err != nil {
		return "", "", "", "", time.Time{}, fmt.Errorf("aws: reading web identity token: %w", err)
	}

	if client == nil {
		client = http.DefaultClient
	}

	q := url.Values{}
	q.Set("Action", "AssumeRoleWithWebIdentity")
	q.Set("Version", "2011-06-15")
	q.Set("RoleArn", roleArn)
	q.Set("RoleSessionName", sessionName)
	q.Set("WebIdentityToken", strings.TrimSpace(string(tokenBytes)))

	req, err := http.NewRequest(http.MethodGet, "https://sts.amazonaws.com/?"+q.Encode(), nil)
	if err != nil {
		return "", "", "", "", time.Time{}, err
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", "", "", time.Time{}, fmt.Errorf("aws: AssumeRoleWithWebIdentity request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", "", "", time.Time{}, fmt.Errorf("aws: AssumeRoleWithWebIdentity: unexpected status %d", resp.StatusCode)
	}

	var parsed stsAssumeRoleResponse
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", "", "", time.Time{}, fmt.Errorf("aws: decoding AssumeRoleWithWebIdentity response: %w", err)
	}

	expiration, err = time.Parse(time.RFC3339, parsed.Result.Credentials.Expiration)
	if err != nil {
		return "", "", "", "", time.Time{}, fmt.Errorf("aws: parsing credential expiration: %w", err)
	}

	return parsed.Result.Credentials.AccessKeyId,
		parsed.Result.Credentials.SecretAccessKey,
		region,
		parsed.Result.Credentials.SessionToken,
		expiration,
		nil
}
