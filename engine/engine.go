// Package engine orchestrates the planner, catalog, action layer, and
// HTTP executor into the resumable multipart upload algorithm: small
// files go through a single PutObject, larger files are planned,
// dispatched with bounded concurrency and per-part retry/backoff, and
// resumed from the catalog on a subsequent invocation.
package engine

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/s3m-go/s3m/action"
	"github.com/s3m-go/s3m/catalog"
	"github.com/s3m-go/s3m/digest"
	"github.com/s3m-go/s3m/planner"
	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

// Options configures one upload.
type Options struct {
	ACL                string
	Meta               map[string]string
	AdditionalChecksum digest.Algorithm
	PartSize           int64 // requested part size, before planner doubling
	MaxConcurrent      int   // 0 selects clamp(NumCPU-2, 1, 255)
	Retries            int   // 0 selects 3
	CatalogDir         string
	Progress           chan<- ProgressEvent
}

// ProgressEvent reports one completed part (or the final PutObject) to
// an optional consumer (the CLI's progress bar).
type ProgressEvent struct {
	PartNumber int
	BytesSent  int64
	Done       bool
}

func (o Options) maxConcurrent() int {
	if o.MaxConcurrent > 0 {
		return o.MaxConcurrent
	}
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	if n > 255 {
		n = 255
	}
	return n
}

func (o Options) retries() int {
	if o.Retries > 0 {
		return o.Retries
	}
	return 3
}

func (o Options) partSize() int64 {
	if o.PartSize > 0 {
		return o.PartSize
	}
	return planner.MinPartSize()
}

// Upload sends the local file at path to target under key, resuming
// from the on-disk catalog when a matching session already exists. It
// returns the final object ETag.
func Upload(ctx context.Context, target *s3m.Target, exec *transport.Executor, key, path string, opts Options) (etag string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sha256Sum, md5Sum, size, err := digest.File(ctx, path)
	if err != nil {
		return "", fmt.Errorf("engine: digesting %s: %w", path, err)
	}

	partSize := opts.partSize()
	if size <= partSize {
		return putSmallFile(ctx, target, exec, key, f, sha256Sum, md5Sum, size, opts)
	}
	contentHex := hex.EncodeToString(sha256Sum)
	return uploadMultipart(ctx, target, exec, key, f, size, info.ModTime(), partSize, contentHex, opts)
}

func putSmallFile(ctx context.Context, target *s3m.Target, exec *transport.Executor, key string, f *os.File, sha256Sum, md5Sum []byte, size int64, opts Options) (string, error) {
	body := make([]byte, size)
	if _, err := f.ReadAt(body, 0); err != nil {
		return "", fmt.Errorf("engine: reading %s: %w", f.Name(), err)
	}
	var checksum *digest.Checksum
	if opts.AdditionalChecksum != digest.None {
		_, _, extra, err := digest.Range(ctx, f.Name(), 0, size, opts.AdditionalChecksum)
		if err != nil {
			return "", err
		}
		checksum = extra
	}
	result, err := (action.PutObject{
		Key:                key,
		Body:               body,
		SHA256:             sha256Sum,
		MD5:                md5Sum,
		ACL:                opts.ACL,
		Meta:               opts.Meta,
		AdditionalChecksum: checksum,
	}).Do(ctx, target, exec)
	if err != nil {
		return "", err
	}
	if opts.Progress != nil {
		opts.Progress <- ProgressEvent{PartNumber: 1, BytesSent: size, Done: true}
	}
	return result.ETag, nil
}

func uploadMultipart(ctx context.Context, target *s3m.Target, exec *transport.Executor, key string, f *os.File, size int64, mtime time.Time, partSize int64, contentHex string, opts Options) (etag string, err error) {
	cat, err := catalog.Open(opts.CatalogDir, target.Hash(), key, mtime.UnixMilli(), contentHex)
	if err != nil {
		return "", err
	}
	defer cat.Close()

	if existing, ok, err := cat.Check(); err != nil {
		return "", err
	} else if ok {
		return existing, nil
	}

	uploadID, ok, err := cat.UploadID()
	if err != nil {
		return "", err
	}
	if !ok {
		uploadID, err = (action.CreateMultipartUpload{
			Key:                key,
			ACL:                opts.ACL,
			Meta:               opts.Meta,
			AdditionalChecksum: opts.AdditionalChecksum,
		}).Do(ctx, target, exec)
		if err != nil {
			return "", err
		}
		if err := cat.SaveUploadID(uploadID); err != nil {
			return "", err
		}
		if err := cat.ClearParts(); err != nil {
			return "", err
		}
		plan, err := planner.Plan(size, partSize)
		if err != nil {
			return "", err
		}
		for _, p := range plan {
			if err := cat.CreatePart(catalog.Part{Number: p.Number, Offset: p.Offset, Length: p.Length}); err != nil {
				return "", err
			}
		}
		if err := cat.Flush(); err != nil {
			return "", err
		}
	}

	if err := dispatchParts(ctx, target, exec, cat, key, uploadID, f, opts); err != nil {
		return "", err
	}

	uploaded, err := cat.UploadedParts()
	if err != nil {
		return "", err
	}
	sort.Slice(uploaded, func(i, j int) bool { return uploaded[i].Number < uploaded[j].Number })

	completedParts := make([]action.CompletedPart, len(uploaded))
	for i, p := range uploaded {
		cp := action.CompletedPart{Number: p.Number, ETag: p.ETag}
		if p.Checksum != nil {
			cp.AdditionalChecksum = p.Checksum
		}
		completedParts[i] = cp
	}

	var composite string
	if opts.AdditionalChecksum != digest.None {
		composite = compositeChecksum(opts.AdditionalChecksum, uploaded)
	}

	etag, err = (action.CompleteMultipartUpload{
		Key:                key,
		UploadID:           uploadID,
		Parts:              completedParts,
		AdditionalChecksum: opts.AdditionalChecksum,
		CompositeChecksum:  composite,
	}).Do(ctx, target, exec)
	if err != nil {
		return "", err
	}
	if err := cat.SaveETag(etag); err != nil {
		return "", err
	}
	if opts.Progress != nil {
		opts.Progress <- ProgressEvent{Done: true}
	}
	return etag, nil
}

// dispatchParts uploads every part still pending in cat, with bounded
// parallelism and per-part retry/backoff, atomically moving each part
// from "parts" to "uploaded" as it succeeds.
func dispatchParts(ctx context.Context, target *s3m.Target, exec *transport.Executor, cat *catalog.Catalog, key, uploadID string, f *os.File, opts Options) error {
	pending, err := cat.PendingParts()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Number < pending[j].Number })

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.maxConcurrent())

	for _, part := range pending {
		part := part
		g.Go(func() error {
			return uploadPartWithRetry(ctx, target, exec, cat, key, uploadID, f, part, opts)
		})
	}
	return g.Wait()
}

func uploadPartWithRetry(ctx context.Context, target *s3m.Target, exec *transport.Executor, cat *catalog.Catalog, key, uploadID string, f *os.File, part catalog.Part, opts Options) error {
	retries := opts.retries()
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		sha256Sum, md5Sum, extra, err := digest.Range(ctx, f.Name(), part.Offset, part.Length, opts.AdditionalChecksum)
		if err != nil {
			lastErr = err
		} else {
			etag, err := (action.UploadPart{
				Key:                key,
				File:               f,
				Number:             part.Number,
				UploadID:           uploadID,
				Offset:             part.Offset,
				Length:             part.Length,
				SHA256:             sha256Sum,
				MD5:                md5Sum,
				AdditionalChecksum: extra,
			}).Do(ctx, target, exec)
			if err == nil {
				completed := part
				completed.ETag = etag
				completed.Checksum = extra
				if opts.Progress != nil {
					opts.Progress <- ProgressEvent{PartNumber: part.Number, BytesSent: part.Length}
				}
				return cat.MovePartToUploaded(part.Number, completed)
			}
			lastErr = err
		}
		if attempt < retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			}
		}
	}
	return fmt.Errorf("engine: part %d: giving up after %d attempts: %w", part.Number, retries, lastErr)
}

// compositeChecksum computes the object-level x-amz-checksum-{alg}
// value: base64(hash(concat(raw per-part checksums))) + "-{n}",
// per spec.md §4.3.
func compositeChecksum(algo digest.Algorithm, uploaded []catalog.Part) string {
	var concat []byte
	for _, p := range uploaded {
		if p.Checksum != nil {
			concat = append(concat, p.Checksum.Value...)
		}
	}
	h := compositeHasher(algo)
	if h == nil {
		return ""
	}
	h.Write(concat)
	sum := h.Sum(nil)
	checksum := digest.Checksum{Algorithm: algo, Value: sum}
	return fmt.Sprintf("%s-%d", checksum.Base64(), len(uploaded))
}

// compositeHasher returns a fresh hasher for algo, matching the
// algorithm set digest.Algorithm supports.
func compositeHasher(algo digest.Algorithm) hash.Hash {
	switch algo {
	case digest.CRC32:
		return crc32.NewIEEE()
	case digest.CRC32C:
		return crc32.New(crc32.MakeTable(crc32.Castagnoli))
	case digest.SHA1:
		return sha1.New()
	case digest.SHA256:
		return sha256.New()
	default:
		return nil
	}
}
