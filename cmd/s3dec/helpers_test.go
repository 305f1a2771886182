package main

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3m-go/s3m/aws"
	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

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

func testExecutor() *transport.Executor {
	return transport.NewExecutor(nil)
}
