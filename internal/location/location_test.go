package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidWithKey(t *testing.T) {
	loc, err := Parse("s3.amazonaws.com/my-bucket/path/to/file.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "s3.amazonaws.com", loc.Host)
	assert.Equal(t, "my-bucket", loc.Bucket)
	assert.Equal(t, "path/to/file.txt", loc.Key)
}

func TestParse_NoKey(t *testing.T) {
	loc, err := Parse("s3.amazonaws.com/my-bucket", false)
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", loc.Bucket)
	assert.Equal(t, "", loc.Key)
}

func TestParse_AllowMissingBucket(t *testing.T) {
	loc, err := Parse("s3.amazonaws.com", true)
	require.NoError(t, err)
	assert.Equal(t, "", loc.Bucket)
}

func TestParse_RejectsMissingBucket(t *testing.T) {
	_, err := Parse("s3.amazonaws.com", false)
	require.Error(t, err)
}

func TestParse_RejectsLeadingSlashInKey(t *testing.T) {
	_, err := Parse("s3.amazonaws.com/my-bucket//file.txt", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leading slashes")
}

func TestParse_RejectsInvalidBucketName(t *testing.T) {
	_, err := Parse("s3.com/INVALID-BUCKET/key", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bucket name")
}

func TestValidateBucketName(t *testing.T) {
	assert.NoError(t, validateBucketName("my-bucket"))
	assert.NoError(t, validateBucketName("bucket123"))
	assert.NoError(t, validateBucketName("my.bucket.name"))
	assert.Error(t, validateBucketName("ab"))
	assert.Error(t, validateBucketName("-bucket"))
	assert.Error(t, validateBucketName("bucket-"))
}

func TestValidateObjectKey(t *testing.T) {
	assert.NoError(t, validateObjectKey(""))
	assert.NoError(t, validateObjectKey("path/to/file.txt"))
	assert.Error(t, validateObjectKey(string(make([]byte, 1025))))
	assert.Error(t, validateObjectKey("file\x00name"))
}
