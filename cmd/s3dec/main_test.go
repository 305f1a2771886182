package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3m-go/s3m/stream"
)

func writeEncrypted(t *testing.T, plaintext string, key [32]byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "object.enc")

	var parts [][]byte
	srv := mockStreamServer(t, &parts)
	defer srv.Close()

	_, err := stream.Upload(context.Background(), testTarget(t, srv), testExecutor(), bytes.NewReader([]byte(plaintext)), "k", stream.Options{
		EncryptionKey: &key,
		PartSize:      1 << 20,
		ScratchDir:    dir,
	})
	require.NoError(t, err)

	var encrypted bytes.Buffer
	for _, p := range parts {
		encrypted.Write(p)
	}
	require.NoError(t, os.WriteFile(path, encrypted.Bytes(), 0o600))
	return path
}

func TestRun_RejectsShortKey(t *testing.T) {
	err := run("irrelevant", "short", "")
	require.Error(t, err)
}

func TestRun_RejectsMissingFile(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("01234567890123456789012345678901"))
	err := run(filepath.Join(t.TempDir(), "nonexistent.enc"), string(key[:]), "")
	require.Error(t, err)
}

func TestRun_DecryptsRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("01234567890123456789012345678901"))

	plaintext := "The quick brown fox jumps over the lazy dog.\n"
	encPath := writeEncrypted(t, plaintext, key)
	outPath := filepath.Join(t.TempDir(), "out.txt")

	require.NoError(t, run(encPath, string(key[:]), outPath))

	out, err := os.Open(outPath)
	require.NoError(t, err)
	defer out.Close()
	data, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.Equal(t, plaintext, string(data))
}
