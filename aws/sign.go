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

// Package aws implements AWS Signature Version 4 request signing
// (canonical request, string-to-sign, HMAC key derivation) for both
// header-based authorization and pre-signed URLs, plus the narrow
// credential-resolution helpers (environment, shared config file, EC2
// instance metadata, STS web identity) the CLI layer needs.
package aws

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/s3m-go/s3m/s3err"
)

// SigningKey carries everything needed to sign a request: the access
// key pair, the signing scope (region + service), and the endpoint.
//
// BaseURI, when non-empty, overrides the derived s3.{region}.amazonaws.com
// endpoint -- used for S3-compatible (non-AWS) endpoints and in tests
// against a local mock server.
type SigningKey struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	Service      string
	BaseURI      string
}

// DeriveKey builds a SigningKey from raw credential material.
func DeriveKey(baseURI, accessKey, secretKey, region, service string) *SigningKey {
	return &SigningKey{
		AccessKey: accessKey,
		SecretKey: secretKey,
		Region:    region,
		Service:   service,
		BaseURI:   baseURI,
	}
}

const (
	algorithm    = "AWS4-HMAC-SHA256"
	unsignedBody = "UNSIGNED-PAYLOAD"
)

// pathEscape re-encodes a canonical URI path: everything except
// A-Za-z0-9-._~/ is percent-encoded.
func pathEscape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// queryEscape encodes a query key or value: everything except
// A-Za-z0-9-._~ is percent-encoded (slash IS encoded here, unlike the
// path case).
func queryEscape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

func canonicalURI(decodedPath string) string {
	if decodedPath == "" {
		return "/"
	}
	return pathEscape(decodedPath)
}

func canonicalQuery(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	pairs := make([]string, 0, len(values))
	for k, vs := range values {
		for _, v := range vs {
			pairs = append(pairs, queryEscape(k)+"="+queryEscape(v))
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// canonicalHeaders returns the CanonicalHeaders block and the
// semicolon-joined SignedHeaders list, both sorted by lowercased name.
func canonicalHeaders(h map[string]string) (string, string) {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)

	var canon strings.Builder
	for _, k := range names {
		canon.WriteString(k)
		canon.WriteByte(':')
		canon.WriteString(collapseSpaces(h[k]))
		canon.WriteByte('\n')
	}
	return canon.String(), strings.Join(names, ";")
}

func collapseSpaces(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !prevSpace {
				b.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func hexSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// SigningKeyHex derives the final HMAC signing key for (secret, date,
// region, service) and returns it hex-encoded, as used by the worked
// test vector in the specification.
func SigningKeyHex(secret, date, region, service string) string {
	return hex.EncodeToString(deriveSigningKey(secret, date, region, service))
}

func deriveSigningKey(secret, date, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(date))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

// Request is the minimal shape the signer needs -- callers build it
// from an *http.Request or from an action's own method/path/query.
type Request struct {
	Method  string
	Path    string // decoded path, e.g. /bucket/key with spaces
	Query   string // raw (undecoded) query string, no leading '?'
	Headers map[string]string
}

// Sign computes the Authorization header value and returns the full
// set of headers (including the caller-supplied ones) that must be
// sent with the request. payloadSHA256 is the hex-lower sha256 of the
// body (or the literal UNSIGNED-PAYLOAD is never passed here -- that
// path is Presign's).
func (k *SigningKey) Sign(req Request, payloadSHA256 string, now time.Time) (map[string]string, error) {
	if k.AccessKey == "" || k.SecretKey == "" {
		return nil, fmt.Errorf("%w: missing access key or secret key", s3err.ErrSignature)
	}
	date := now.UTC().Format("20060102")
	datetime := now.UTC().Format("20060102T150405Z")

	headers := map[string]string{}
	for hk, hv := range req.Headers {
		headers[strings.ToLower(hk)] = strings.TrimSpace(hv)
	}
	headers["host"] = k.Endpoint()
	headers["x-amz-date"] = datetime
	headers["x-amz-content-sha256"] = payloadSHA256
	if k.SessionToken != "" {
		headers["x-amz-security-token"] = k.SessionToken
	}

	canonHeaders, signedHeaders := canonicalHeaders(headers)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI(req.Path),
		canonicalQuery(req.Query),
		canonHeaders,
		signedHeaders,
		payloadSHA256,
	}, "\n")

	scope := fmt.Sprintf("%s/%s/%s/aws4_request", date, k.Region, k.Service)
	stringToSign := strings.Join([]string{
		algorithm,
		datetime,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	signingKey := deriveSigningKey(k.SecretKey, date, k.Region, k.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	headers["authorization"] = fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, k.AccessKey, scope, signedHeaders, signature,
	)
	return headers, nil
}

// SignHTTP signs req in place: it sets Host and injects x-amz-date,
// x-amz-content-sha256, x-amz-security-token (when present) and
// Authorization headers, computing the body digest from contents.
// contents may be nil for requests with no body (GET, DELETE, HEAD).
func (k *SigningKey) SignHTTP(req *http.Request, contents []byte) error {
	return k.SignHTTPDigest(req, hexSHA256(contents))
}

// SignHTTPDigest is like SignHTTP but takes an already-computed
// hex-lower sha256 payload digest, for callers streaming a body they
// don't want to buffer twice (multipart part uploads, range reads).
func (k *SigningKey) SignHTTPDigest(req *http.Request, payloadSHA256 string) error {
	headers := map[string]string{}
	for name := range req.Header {
		headers[name] = req.Header.Get(name)
	}
	now := time.Now()
	signed, err := k.Sign(Request{
		Method:  req.Method,
		Path:    req.URL.Path,
		Query:   req.URL.RawQuery,
		Headers: headers,
	}, payloadSHA256, now)
	if err != nil {
		return err
	}
	req.Host = signed["host"]
	req.Header.Set("Host", signed["host"])
	req.Header.Set("X-Amz-Date", signed["x-amz-date"])
	req.Header.Set("X-Amz-Content-Sha256", signed["x-amz-content-sha256"])
	if tok, ok := signed["x-amz-security-token"]; ok {
		req.Header.Set("X-Amz-Security-Token", tok)
	}
	req.Header.Set("Authorization", signed["authorization"])
	return nil
}

// Endpoint returns the host string the signer uses, honoring BaseURI
// when present.
func (k *SigningKey) Endpoint() string {
	if k.BaseURI != "" {
		u, err := url.Parse(k.BaseURI)
		if err == nil && u.Host != "" {
			return u.Host
		}
	}
	if k.Region == "" {
		return "s3.amazonaws.com"
	}
	return AWSRegion{RegionName: k.Region}.Endpoint()
}

// PresignQuery computes the canonical presigned-URL query parameters
// for a GET (or other) request, returning the fully-signed query
// string to append to the URL (including X-Amz-Signature). expires
// must be in [1, 604800] seconds.
func (k *SigningKey) PresignQuery(method, decodedPath string, expires time.Duration, now time.Time) (string, error) {
	seconds := int(expires.Seconds())
	if seconds < 1 || seconds > 604_800 {
		return "", fmt.Errorf("%w: expires out of range [1,604800]s", s3err.ErrInvalidArgument)
	}
	date := now.UTC().Format("20060102")
	datetime := now.UTC().Format("20060102T150405Z")
	scope := fmt.Sprintf("%s/%s/%s/aws4_request", date, k.Region, k.Service)

	params := []struct{ k, v string }{
		{"X-Amz-Algorithm", algorithm},
		{"X-Amz-Credential", k.AccessKey + "/" + scope},
		{"X-Amz-Date", datetime},
		{"X-Amz-Expires", fmt.Sprintf("%d", seconds)},
		{"X-Amz-SignedHeaders", "host"},
	}
	var rawQuery bytes.Buffer
	for i, p := range params {
		if i > 0 {
			rawQuery.WriteByte('&')
		}
		rawQuery.WriteString(p.k)
		rawQuery.WriteByte('=')
		rawQuery.WriteString(queryEscape(p.v))
	}

	headers := map[string]string{"host": k.Endpoint()}
	canonHeaders, signedHeaders := canonicalHeaders(headers)
	canonicalRequest := strings.Join([]string{
		method,
		canonicalURI(decodedPath),
		canonicalQuery(rawQuery.String()),
		canonHeaders,
		signedHeaders,
		unsignedBody,
	}, "\n")

	stringToSign := strings.Join([]string{
		algorithm,
		datetime,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	signingKey := deriveSigningKey(k.SecretKey, date, k.Region, k.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	rawQuery.WriteString("&X-Amz-Signature=")
	rawQuery.WriteString(signature)
	return rawQuery.String(), nil
}

// Presign returns a complete, ready-to-use GET URL for decodedPath
// (e.g. /bucket/key) that is valid for expires.
func (k *SigningKey) Presign(decodedPath string, expires time.Duration) (string, error) {
	query, err := k.PresignQuery(http.MethodGet, decodedPath, expires, time.Now())
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:  "https",
		Host:    k.Endpoint(),
		Path:    decodedPath,
		RawPath: pathEscape(decodedPath),
	}
	return u.String() + "?" + query, nil
}

// ContentMD5 returns the base64-encoded MD5 digest of body, used for
// the Content-MD5 header on operations that supply one.
func ContentMD5(body []byte) string {
	sum := md5.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// SHA256Hex returns the hex-lower SHA-256 digest of body.
func SHA256Hex(body []byte) string {
	return hexSHA256(body)
}
