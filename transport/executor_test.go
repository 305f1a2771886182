package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Do_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client())
	req, err := http.NewRequest(http.MethodPut, srv.URL, nil)
	require.NoError(t, err)

	resp, err := exec.Do(context.Background(), req, BytesBody([]byte("payload")), false)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExecutor_Do_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<Error><Code>AccessDenied</Code><Message>nope</Message><RequestId>req-1</RequestId></Error>`))
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client())
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = exec.Do(context.Background(), req, NoBody(), false)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "AccessDenied", apiErr.Code)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.False(t, apiErr.Retryable())
}

func TestAPIError_Retryable(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 500}).Retryable())
	assert.True(t, (&APIError{StatusCode: 429}).Retryable())
	assert.False(t, (&APIError{StatusCode: 404}).Retryable())
}

func TestFileRangeBody_DoesNotLoadWholeRange(t *testing.T) {
	data := []byte("0123456789")
	body := FileRangeBody(bytesReaderAt(data), 2, 5)
	assert.Equal(t, int64(5), body.Len())
	got, err := io.ReadAll(body.reader())
	require.NoError(t, err)
	assert.Equal(t, "23456", string(got))
}

type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
