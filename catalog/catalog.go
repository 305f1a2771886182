// Package catalog persists multipart upload resume state in an
// embedded key-value store (bbolt) keyed by a fingerprint of
// credentials, object key, and file mtime, so an interrupted upload
// resumes exactly where it left off and a re-upload of identical
// content short-circuits.
package catalog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/s3m-go/s3m/digest"
	"github.com/s3m-go/s3m/s3err"
)

var (
	bucketParts    = []byte("parts")
	bucketUploaded = []byte("uploaded")
)

// Part is the bbolt-serialized record for one multipart part, in
// either the parts (pending) or uploaded tree.
type Part struct {
	Number   int
	Offset   int64
	Length   int64
	ETag     string            `json:",omitempty"`
	Checksum *digest.Checksum  `json:",omitempty"`
}

// Catalog is one open resume-state database, scoped to a single
// (destination, object key, content) tuple.
type Catalog struct {
	db         *bbolt.DB
	sessionKey string
}

// Open opens (creating if necessary) the catalog database for the
// file whose content digest is contentHex, under dir/streams/. s3Hash
// is the destination fingerprint (s3m.Target.Hash()), objectKey the
// destination key, mtimeMS the source file's modification time in
// milliseconds since epoch.
func Open(dir string, s3Hash [8]byte, objectKey string, mtimeMS int64, contentHex string) (*Catalog, error) {
	streamDir := filepath.Join(dir, "streams", contentHex)
	if err := os.MkdirAll(streamDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", s3err.ErrCatalogIO, err)
	}
	db, err := bbolt.Open(filepath.Join(streamDir, "catalog.db"), 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening catalog: %v", s3err.ErrCatalogIO, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketParts); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketUploaded)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing buckets: %v", s3err.ErrCatalogIO, err)
	}

	sessionKey := fmt.Sprintf("%s %s %d", hexPrefix(s3Hash), objectKey, mtimeMS)
	return &Catalog{db: db, sessionKey: sessionKey}, nil
}

func hexPrefix(hash [8]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 8)
	for i, b := range hash[:4] {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0xf]
	}
	return string(out)
}

// Close releases the underlying database file lock.
func (c *Catalog) Close() error { return c.db.Close() }

// Check returns the final ETag recorded for this session, if a prior
// upload of this exact content to this exact destination already
// completed.
func (c *Catalog) Check() (etag string, ok bool, err error) {
	// bbolt has no implicit default bucket; session-scoped keys live
	// in a dedicated "session" bucket created lazily on first write.
	err = c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte("session"))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte("etag " + c.sessionKey)); v != nil {
			etag = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", s3err.ErrCatalogIO, err)
	}
	return etag, ok, nil
}

// UploadID returns the in-progress upload ID recorded for this
// session, if any.
func (c *Catalog) UploadID() (id string, ok bool, err error) {
	err = c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte("session"))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(c.sessionKey)); v != nil {
			id = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", s3err.ErrCatalogIO, err)
	}
	return id, ok, nil
}

// SaveUploadID records the upload ID returned by CreateMultipartUpload.
func (c *Catalog) SaveUploadID(id string) error {
	return c.update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte("session"))
		if err != nil {
			return err
		}
		return b.Put([]byte(c.sessionKey), []byte(id))
	})
}

// SaveETag records the final ETag of a completed upload.
func (c *Catalog) SaveETag(etag string) error {
	return c.update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte("session"))
		if err != nil {
			return err
		}
		return b.Put([]byte("etag "+c.sessionKey), []byte(etag))
	})
}

func partKey(number int) []byte {
	k := make([]byte, 2)
	binary.BigEndian.PutUint16(k, uint16(number))
	return k
}

// CreatePart inserts a pending part record (awaiting upload) into the
// parts tree.
func (c *Catalog) CreatePart(p Part) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketParts).Put(partKey(p.Number), data)
	})
}

// GetPart returns the pending record for part number, if present.
func (c *Catalog) GetPart(number int) (p Part, ok bool, err error) {
	err = c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketParts).Get(partKey(number))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return Part{}, false, fmt.Errorf("%w: %v", s3err.ErrCatalogIO, err)
	}
	return p, ok, nil
}

// PendingParts returns every part still awaiting upload, in ascending
// part-number order (bbolt's big-endian keys sort numerically).
func (c *Catalog) PendingParts() ([]Part, error) {
	var parts []Part
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketParts).ForEach(func(_, v []byte) error {
			var p Part
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			parts = append(parts, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", s3err.ErrCatalogIO, err)
	}
	return parts, nil
}

// MovePartToUploaded atomically removes number from the parts tree and
// inserts the completed record (with ETag/checksum set) into the
// uploaded tree, inside a single bbolt transaction.
func (c *Catalog) MovePartToUploaded(number int, completed Part) error {
	data, err := json.Marshal(completed)
	if err != nil {
		return err
	}
	return c.update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketParts).Delete(partKey(number)); err != nil {
			return err
		}
		return tx.Bucket(bucketUploaded).Put(partKey(number), data)
	})
}

// UploadedParts returns every completed part, in ascending part-number
// order.
func (c *Catalog) UploadedParts() ([]Part, error) {
	var parts []Part
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUploaded).ForEach(func(_, v []byte) error {
			var p Part
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			parts = append(parts, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", s3err.ErrCatalogIO, err)
	}
	return parts, nil
}

// ClearParts removes every pending part record, used when a fresh
// upload_id is assigned and the planner repopulates the pending set.
func (c *Catalog) ClearParts() error {
	return c.update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketParts); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketParts)
		return err
	})
}

// Flush fsyncs the database file.
func (c *Catalog) Flush() error {
	return c.db.Sync()
}

func (c *Catalog) update(fn func(tx *bbolt.Tx) error) error {
	if err := c.db.Update(fn); err != nil {
		return fmt.Errorf("%w: %v", s3err.ErrCatalogIO, err)
	}
	return nil
}
