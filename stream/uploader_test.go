package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3m-go/s3m/aws"
	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

func TestObjectKey(t *testing.T) {
	cases := []struct {
		key      string
		compress bool
		encrypt  bool
		want     string
	}{
		{"test", false, false, "test"},
		{"test", true, false, "test.zst"},
		{"test.txt", false, false, "test.txt"},
		{"test.txt", true, false, "test.txt.zst"},
		{"test.ZST", false, false, "test.ZST"},
		{"test.ZST", true, false, "test.ZST"},
		{"testzst", true, false, "testzst.zst"},
		{"test", false, true, "test.enc"},
		{"test", true, true, "test.zst.enc"},
		{"test.enc", false, true, "test.enc.enc"},
		{"test.zst.enc", true, true, "test.zst.enc.zst.enc"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ObjectKey(c.key, c.compress, c.encrypt))
	}
}

func mockStreamServer(t *testing.T, parts *[][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case r.Method == http.MethodPost && q.Has("uploads"):
			fmt.Fprint(w, `<InitiateMultipartUploadResult><UploadId>upload-1</UploadId></InitiateMultipartUploadResult>`)
		case r.Method == http.MethodPut && q.Has("partNumber"):
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			*parts = append(*parts, body)
			w.Header().Set("ETag", fmt.Sprintf(`"part-%s"`, q.Get("partNumber")))
		case r.Method == http.MethodPost && q.Has("uploadId"):
			io.Copy(io.Discard, r.Body)
			fmt.Fprint(w, `<CompleteMultipartUploadResult><ETag>"final"</ETag></CompleteMultipartUploadResult>`)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL)
		}
	})
	return httptest.NewServer(mux)
}

func testTarget(t *testing.T, srv *httptest.Server) *s3m.Target {
	t.Helper()
	key := aws.DeriveKey(srv.URL, "AKIDEXAMPLE", "secret", "us-east-1", "s3")
	return s3m.New(key, "bucket")
}

func TestUpload_PlainPassthrough(t *testing.T) {
	var parts [][]byte
	srv := mockStreamServer(t, &parts)
	defer srv.Close()

	target := testTarget(t, srv)
	exec := transport.NewExecutor(nil)

	input := strings.Repeat("x", 100)
	etag, err := Upload(context.Background(), target, exec, strings.NewReader(input), "k", Options{
		PartSize:   40,
		ScratchDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, `"final"`, etag)

	var total bytes.Buffer
	for _, p := range parts {
		total.Write(p)
	}
	assert.Equal(t, input, total.String())
}

func TestUpload_CompressedRoundTrips(t *testing.T) {
	var parts [][]byte
	srv := mockStreamServer(t, &parts)
	defer srv.Close()

	target := testTarget(t, srv)
	exec := transport.NewExecutor(nil)

	input := strings.Repeat("compress me please ", 500)
	key, err := Upload(context.Background(), target, exec, strings.NewReader(input), "data.bin", Options{
		Compress:   true,
		PartSize:   1024 * 1024,
		ScratchDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, `"final"`, key)

	var compressed bytes.Buffer
	for _, p := range parts {
		compressed.Write(p)
	}
	dec, err := zstd.NewReader(&compressed)
	require.NoError(t, err)
	defer dec.Close()
	out, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestChacha20Writer_RoundTrips(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("01234567890123456789012345678901"))

	var encrypted bytes.Buffer
	var noncePrefix [noncePrefixSize]byte
	copy(noncePrefix[:], []byte("abcdefg"))
	require.NoError(t, writeNonceHeader(&encrypted, noncePrefix))

	w, err := newChacha20Writer(&encrypted, key, noncePrefix)
	require.NoError(t, err)

	plaintext := strings.Repeat("secret data ", 10000) // spans multiple frames
	_, err = io.Copy(w, strings.NewReader(plaintext))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := DecryptReader(bytes.NewReader(encrypted.Bytes()), key)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plaintext, string(out))
}

func TestUpload_EncryptedRoundTrips(t *testing.T) {
	var parts [][]byte
	srv := mockStreamServer(t, &parts)
	defer srv.Close()

	target := testTarget(t, srv)
	exec := transport.NewExecutor(nil)

	var encKey [32]byte
	copy(encKey[:], []byte("thirtytwobyteslongencryptionkey!"))

	input := strings.Repeat("top secret payload ", 2000)
	etag, err := Upload(context.Background(), target, exec, strings.NewReader(input), "secret.bin", Options{
		EncryptionKey: &encKey,
		PartSize:      64 * 1024,
		ScratchDir:    t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, `"final"`, etag)

	var encrypted bytes.Buffer
	for _, p := range parts {
		encrypted.Write(p)
	}
	r, err := DecryptReader(&encrypted, encKey)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}
