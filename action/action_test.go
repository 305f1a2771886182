package action

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3m-go/s3m/aws"
	"github.com/s3m-go/s3m/mock"
	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

func newTestTarget(t *testing.T, srv *mock.Server) (*s3m.Target, *transport.Executor) {
	t.Helper()
	key := aws.DeriveKey(srv.URL(), "fake-access-key", "fake-secret-key", "us-east-1", "s3")
	return s3m.New(key, "test-bucket"), transport.NewExecutor(nil)
}

func digests(body []byte) (sha256Sum, md5Sum []byte) {
	s := sha256.Sum256(body)
	m := md5.Sum(body)
	return s[:], m[:]
}

func TestPutHeadGetDeleteObject(t *testing.T) {
	srv := mock.New("test-bucket", "us-east-1")
	defer srv.Close()
	target, exec := newTestTarget(t, srv)
	ctx := context.Background()

	body := []byte("hello, object")
	sha, md5sum := digests(body)

	putResult, err := PutObject{Key: "a/b.txt", Body: body, SHA256: sha, MD5: md5sum}.Do(ctx, target, exec)
	require.NoError(t, err)
	assert.NotEmpty(t, putResult.ETag)

	head, err := HeadObject{Key: "a/b.txt"}.Do(ctx, target, exec)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), head.Size)
	assert.Equal(t, putResult.ETag, head.ETag)

	reader, meta, err := GetObject{Key: "a/b.txt"}.Do(ctx, target, exec)
	require.NoError(t, err)
	defer reader.Close()
	got := make([]byte, meta.Size)
	_, err = io.ReadFull(reader, got)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	err = DeleteObject{Key: "a/b.txt"}.Do(ctx, target, exec)
	require.NoError(t, err)

	_, err = HeadObject{Key: "a/b.txt"}.Do(ctx, target, exec)
	require.Error(t, err)
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestListObjectsV2(t *testing.T) {
	srv := mock.New("test-bucket", "us-east-1")
	defer srv.Close()
	target, exec := newTestTarget(t, srv)

	srv.PopulateTestData(map[string][]byte{
		"dir1/file1.txt": []byte("one"),
		"dir1/file2.txt": []byte("two"),
		"dir2/file3.txt": []byte("three"),
	})

	result, err := ListObjectsV2{Prefix: "dir1/"}.Do(context.Background(), target, exec)
	require.NoError(t, err)
	assert.Len(t, result.Contents, 2)
	keys := []string{result.Contents[0].Key, result.Contents[1].Key}
	assert.Contains(t, keys, "dir1/file1.txt")
	assert.Contains(t, keys, "dir1/file2.txt")
}

func TestMultipartUploadLifecycle(t *testing.T) {
	srv := mock.New("test-bucket", "us-east-1")
	defer srv.Close()
	target, exec := newTestTarget(t, srv)
	ctx := context.Background()

	uploadID, err := CreateMultipartUpload{Key: "big.bin"}.Do(ctx, target, exec)
	require.NoError(t, err)
	assert.NotEmpty(t, uploadID)

	part1 := bytes.Repeat([]byte{0xAA}, 5*1024*1024)
	part2 := []byte("tail bytes")

	f1, err := os.CreateTemp(t.TempDir(), "part1-*")
	require.NoError(t, err)
	_, err = f1.Write(part1)
	require.NoError(t, err)

	f2, err := os.CreateTemp(t.TempDir(), "part2-*")
	require.NoError(t, err)
	_, err = f2.Write(part2)
	require.NoError(t, err)

	sha1, md51 := digests(part1)
	etag1, err := UploadPart{Key: "big.bin", File: f1, Number: 1, UploadID: uploadID, Length: int64(len(part1)), SHA256: sha1, MD5: md51}.Do(ctx, target, exec)
	require.NoError(t, err)
	assert.NotEmpty(t, etag1)

	sha2, md52 := digests(part2)
	etag2, err := UploadPart{Key: "big.bin", File: f2, Number: 2, UploadID: uploadID, Length: int64(len(part2)), SHA256: sha2, MD5: md52}.Do(ctx, target, exec)
	require.NoError(t, err)
	assert.NotEmpty(t, etag2)

	finalETag, err := CompleteMultipartUpload{
		Key:      "big.bin",
		UploadID: uploadID,
		Parts: []CompletedPart{
			{Number: 1, ETag: etag1},
			{Number: 2, ETag: etag2},
		},
	}.Do(ctx, target, exec)
	require.NoError(t, err)
	assert.NotEmpty(t, finalETag)

	content, found := srv.ObjectContent("big.bin")
	require.True(t, found)
	assert.Equal(t, append(part1, part2...), content)
}

func TestAbortMultipartUpload(t *testing.T) {
	srv := mock.New("test-bucket", "us-east-1")
	defer srv.Close()
	target, exec := newTestTarget(t, srv)
	ctx := context.Background()

	uploadID, err := CreateMultipartUpload{Key: "aborted.bin"}.Do(ctx, target, exec)
	require.NoError(t, err)

	err = AbortMultipartUpload{Key: "aborted.bin", UploadID: uploadID}.Do(ctx, target, exec)
	require.NoError(t, err)

	uploads := srv.ListMultipartUploads()
	assert.Len(t, uploads, 0)
}

// CreateBucket addresses the bucket root, which mock.Server never
// routes (it always expects a bucket segment in the path), so it is
// exercised here against a bare httptest server that only asserts the
// request shape instead.
func TestCreateBucket(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	key := aws.DeriveKey(srv.URL, "fake-access-key", "fake-secret-key", "us-east-1", "s3")
	target := s3m.New(key, "new-bucket")
	exec := transport.NewExecutor(nil)

	err := CreateBucket{Region: "us-west-2"}.Do(context.Background(), target, exec)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/new-bucket/", gotPath)
}
