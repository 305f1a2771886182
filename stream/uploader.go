// Package stream uploads an object read incrementally (stdin, or any
// io.Reader too large or too transient to seek) through an optional
// zstd-compress / ChaCha20-Poly1305-encrypt transform chain, spooling
// each rolling part to a scratch file before handing it to S3 as a
// StreamPart, mirroring the fold-based pipeline of
// original_source/src/stream/upload_compressed_encrypted.rs translated
// from an async try_fold into a synchronous io.Writer chain.
package stream

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/s3m-go/s3m/action"
	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

// defaultPartSize matches original_source/src/stream/mod.rs's
// STDIN_BUFFER_SIZE: 512 MiB. 10,000 parts of this size hold
// 5,368,709,120,000 bytes, slightly less than the 5 TiB maximum object
// size.
const defaultPartSize = 512 * 1024 * 1024

// ProgressEvent reports one completed part to an optional consumer.
type ProgressEvent struct {
	PartNumber int
	BytesSent  int64
	Done       bool
}

// Options configures one streamed upload.
type Options struct {
	ACL           string
	Meta          map[string]string
	Compress      bool
	EncryptionKey *[32]byte // nil disables encryption
	PartSize      int64     // 0 selects defaultPartSize
	ScratchDir    string    // "" selects os.TempDir()
	Retries       int       // 0 selects 3
	Progress      chan<- ProgressEvent
}

func (o Options) partSize() int64 {
	if o.PartSize > 0 {
		return o.PartSize
	}
	return defaultPartSize
}

func (o Options) retries() int {
	if o.Retries > 0 {
		return o.Retries
	}
	return 3
}

func (o Options) scratchDir() string {
	if o.ScratchDir != "" {
		return o.ScratchDir
	}
	return os.TempDir()
}

// ObjectKey appends .zst when compression is requested and key does not
// already end in .zst (case-insensitive), then appends .enc whenever
// encryption is requested, mirroring
// original_source/src/stream/upload_compressed_encrypted.rs's
// get_key(object_key, compress, encrypt).
func ObjectKey(key string, compress, encrypt bool) string {
	if compress && !strings.EqualFold(filepath.Ext(key), ".zst") {
		key += ".zst"
	}
	if encrypt {
		key += ".enc"
	}
	return key
}

// uploader holds the rolling-part state of one streamed upload: the
// active spool file, how many bytes it has received, the part number
// it will become, and the per-part digests accumulated alongside it.
type uploader struct {
	ctx      context.Context
	target   *s3m.Target
	exec     *transport.Executor
	key      string
	uploadID string
	opts     Options

	active     *os.File
	count      int64
	part       int
	sha256     hash.Hash
	md5        hash.Hash
	completed  []action.CompletedPart
}

// Upload reads r to completion, transforming and uploading it as a
// multipart S3 object, and returns the final ETag.
func Upload(ctx context.Context, target *s3m.Target, exec *transport.Executor, r io.Reader, key string, opts Options) (etag string, err error) {
	objectKey := ObjectKey(key, opts.Compress, opts.EncryptionKey != nil)
	meta := map[string]string{}
	for k, v := range opts.Meta {
		meta[k] = v
	}
	if opts.EncryptionKey != nil {
		meta["Content-Type"] = "application/vnd.s3m.encrypted"
	} else if opts.Compress {
		meta["Content-Type"] = "application/zstd"
	}

	uploadID, err := (action.CreateMultipartUpload{Key: objectKey, ACL: opts.ACL, Meta: meta}).Do(ctx, target, exec)
	if err != nil {
		return "", fmt.Errorf("stream: initiating upload: %w", err)
	}

	u := &uploader{ctx: ctx, target: target, exec: exec, key: objectKey, uploadID: uploadID, opts: opts}
	if err := u.openSpool(); err != nil {
		return "", err
	}

	var chain io.Writer = u
	var chacha *chacha20Writer
	if opts.EncryptionKey != nil {
		var noncePrefix [noncePrefixSize]byte
		if _, err := rand.Read(noncePrefix[:]); err != nil {
			return "", fmt.Errorf("stream: generating nonce: %w", err)
		}
		if err := writeNonceHeader(u, noncePrefix); err != nil {
			return "", err
		}
		chacha, err = newChacha20Writer(u, *opts.EncryptionKey, noncePrefix)
		if err != nil {
			return "", err
		}
		chain = chacha
	}

	var zstdEnc *zstd.Encoder
	if opts.Compress {
		zstdEnc, err = zstd.NewWriter(chain)
		if err != nil {
			return "", fmt.Errorf("stream: initializing compressor: %w", err)
		}
		chain = zstdEnc
	}

	if _, err := io.Copy(chain, r); err != nil {
		return "", fmt.Errorf("stream: reading input: %w", err)
	}
	if zstdEnc != nil {
		if err := zstdEnc.Close(); err != nil {
			return "", fmt.Errorf("stream: flushing compressor: %w", err)
		}
	}
	if chacha != nil {
		if err := chacha.Close(); err != nil {
			return "", fmt.Errorf("stream: flushing cipher: %w", err)
		}
	}

	if err := u.finishPart(); err != nil {
		return "", err
	}

	etag, err = (action.CompleteMultipartUpload{Key: objectKey, UploadID: uploadID, Parts: u.completed}).Do(ctx, target, exec)
	if err != nil {
		return "", fmt.Errorf("stream: completing upload: %w", err)
	}
	if opts.Progress != nil {
		opts.Progress <- ProgressEvent{Done: true}
	}
	return etag, nil
}

func (u *uploader) openSpool() error {
	f, err := os.CreateTemp(u.opts.scratchDir(), "s3m-stream-*.part")
	if err != nil {
		return fmt.Errorf("stream: opening scratch file: %w", err)
	}
	u.active = f
	u.count = 0
	u.part++
	u.sha256 = sha256.New()
	u.md5 = md5.New()
	return nil
}

// Write implements io.Writer as the base of the transform chain: every
// byte the compressor/cipher ultimately emits lands here, split across
// spool files at partSize boundaries. Frames from the cipher layer may
// straddle a part boundary; that's immaterial, S3 parts are just byte
// ranges.
func (u *uploader) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if u.count >= u.opts.partSize() {
			if err := u.finishPart(); err != nil {
				return total, err
			}
			if err := u.openSpool(); err != nil {
				return total, err
			}
		}
		remaining := u.opts.partSize() - u.count
		n := int64(len(p))
		if n > remaining {
			n = remaining
		}
		if _, err := u.active.Write(p[:n]); err != nil {
			return total, err
		}
		u.sha256.Write(p[:n])
		u.md5.Write(p[:n])
		u.count += n
		total += int(n)
		p = p[n:]
	}
	return total, nil
}

// finishPart uploads the active spool file as the next part and
// discards it, retrying transiently failed attempts in place (no
// automatic multipart abort on exhaustion, matching
// original_source/src/stream/mod.rs:try_stream_part).
func (u *uploader) finishPart() error {
	defer os.Remove(u.active.Name())
	defer u.active.Close()

	if u.count == 0 && u.part > 1 {
		return nil
	}
	sha256Sum := u.sha256.Sum(nil)
	md5Sum := u.md5.Sum(nil)
	path := u.active.Name()
	length := u.count
	number := u.part

	var etag string
	var lastErr error
	for attempt := 1; attempt <= u.opts.retries(); attempt++ {
		etag, lastErr = (action.StreamPart{
			Key:      u.key,
			Path:     path,
			Number:   number,
			UploadID: u.uploadID,
			Length:   length,
			SHA256:   sha256Sum,
			MD5:      md5Sum,
		}).Do(u.ctx, u.target, u.exec, openReaderAt)
		if lastErr == nil {
			break
		}
		if attempt < u.opts.retries() {
			select {
			case <-u.ctx.Done():
				return u.ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			}
		}
	}
	if lastErr != nil {
		return fmt.Errorf("stream: part %d: giving up after %d attempts: %w", number, u.opts.retries(), lastErr)
	}

	u.completed = append(u.completed, action.CompletedPart{Number: number, ETag: etag})
	if u.opts.Progress != nil {
		u.opts.Progress <- ProgressEvent{PartNumber: number, BytesSent: length}
	}
	return nil
}

func openReaderAt(path string) (io.ReaderAt, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
