package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
hosts:
  b2:
    endpoint: https://s3.us-west-002.backblazeb2.com
    access_key: key123
    secret_key: secret123
    bucket: my-bucket
    compress: true
  aws:
    region: us-east-1
    access_key: AKIDEXAMPLE
    secret_key: wJalrXUtnFEMI
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Hosts, 2)
	assert.Equal(t, "my-bucket", cfg.Hosts["b2"].Bucket)
	assert.True(t, cfg.Hosts["b2"].Compress)
	assert.Equal(t, "us-east-1", cfg.Hosts["aws"].Region)
}

func TestLoad_RejectsMissingEndpointAndRegion(t *testing.T) {
	path := writeConfig(t, `
hosts:
  bad:
    access_key: key
    secret_key: secret
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsShortEncKey(t *testing.T) {
	path := writeConfig(t, `
hosts:
  bad:
    region: us-east-1
    access_key: key
    secret_key: secret
    enc_key: tooshort
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestFind_UnknownAlias(t *testing.T) {
	path := writeConfig(t, `
hosts:
  known:
    region: us-east-1
    access_key: key
    secret_key: secret
`)
	_, err := Find(path, "unknown")
	require.Error(t, err)
}

func TestHost_EncryptionKey(t *testing.T) {
	h := Host{EncKey: "01234567890123456789012345678901"}
	key, ok := h.EncryptionKey()
	require.True(t, ok)
	assert.Equal(t, byte('0'), key[0])
	assert.Equal(t, byte('1'), key[31])

	none := Host{}
	_, ok = none.EncryptionKey()
	assert.False(t, ok)
}
