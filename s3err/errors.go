// Package s3err carries the error taxonomy shared by every layer of the
// uploader: signer, catalog, digest pipeline, transport and engine all
// return errors that satisfy this package's sentinels so that callers can
// classify failures without parsing strings.
package s3err

import (
	"context"
	"errors"
	"net"
)

// Sentinel errors for the taxonomy in the specification's error handling
// design. Use errors.Is to test for these; wrap with fmt.Errorf("...: %w").
var (
	ErrConfigInvalid   = errors.New("s3m: invalid configuration")
	ErrSignature       = errors.New("s3m: signature error")
	ErrInvalidArgument = errors.New("s3m: invalid argument")
	ErrCatalogIO       = errors.New("s3m: catalog i/o error")
	ErrCryptoKey       = errors.New("s3m: invalid encryption key")
	ErrCancelled       = errors.New("s3m: operation cancelled")
	ErrShortRead       = errors.New("s3m: short read before expected length")
)

// ChecksumError reports a digest that didn't match what was expected,
// e.g. a resumed session whose on-disk content changed underneath it.
type ChecksumError struct {
	Expected string
	Got      string
}

func (e *ChecksumError) Error() string {
	return "s3m: checksum mismatch: expected " + e.Expected + ", got " + e.Got
}

// Retryable reports whether err represents a transient condition that is
// safe to retry with backoff (network errors, 5xx responses, 429s).
// Cancellation is never retryable. Non-retryable errors (bad signature,
// bad arguments, catalog corruption) should abort the enclosing upload
// immediately.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	var ne net.Error
	return errors.As(err, &ne)
}
