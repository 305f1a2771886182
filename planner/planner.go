// Package planner carves a file into the part layout a multipart
// upload will use, without touching the filesystem or network.
package planner

import "fmt"

const (
	minPartSize   = 5 * 1024 * 1024         // 5 MiB
	maxPartSize   = 5 * 1024 * 1024 * 1024  // 5 GiB
	maxParts      = 10_000
	maxObjectSize = 5_497_558_138_880 // 5 TiB
)

// Part is one planned multipart part: a contiguous byte range of the
// source file and the 1-based part number S3 expects.
type Part struct {
	Number int
	Offset int64
	Length int64
}

// Plan returns the part layout for fileSize given a starting
// requestedPartSize. requestedPartSize is doubled until the number of
// parts it would produce is within the 10,000-part limit. An error is
// returned if no valid part size exists (file larger than the maximum
// object size, or requestedPartSize already exceeds the 5 GiB max part
// size and still yields too many parts).
//
// Plan returns no parts for fileSize == 0 or requestedPartSize == 0.
func Plan(fileSize, requestedPartSize int64) ([]Part, error) {
	if fileSize == 0 || requestedPartSize == 0 {
		return nil, nil
	}
	if fileSize > maxObjectSize {
		return nil, fmt.Errorf("planner: file size %d exceeds maximum object size %d", fileSize, maxObjectSize)
	}

	partSize := requestedPartSize
	for fileSize/partSize >= maxParts {
		partSize *= 2
		if partSize > maxPartSize {
			return nil, fmt.Errorf("planner: cannot fit file size %d within %d parts of at most %d bytes", fileSize, maxParts, maxPartSize)
		}
	}

	var parts []Part
	var offset int64
	number := 1
	for offset < fileSize {
		length := partSize
		if remaining := fileSize - offset; remaining < length {
			length = remaining
		}
		parts = append(parts, Part{Number: number, Offset: offset, Length: length})
		offset += length
		number++
	}
	return parts, nil
}

// MinPartSize returns the minimum valid part size in bytes (5 MiB).
func MinPartSize() int64 { return minPartSize }

// MaxPartSize returns the maximum valid part size in bytes (5 GiB).
func MaxPartSize() int64 { return maxPartSize }

// MaxParts returns the maximum number of parts a multipart upload may have.
func MaxParts() int { return maxParts }

// MaxObjectSize returns the maximum object size S3 accepts (5 TiB).
func MaxObjectSize() int64 { return maxObjectSize }
