package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Open(t.TempDir(), [8]byte{1, 2, 3, 4}, "my/object", 1700000000000, "deadbeef")
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestCatalog_NewSessionHasNoUploadIDOrETag(t *testing.T) {
	cat := open(t)

	_, ok, err := cat.UploadID()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cat.Check()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCatalog_SaveAndReadUploadID(t *testing.T) {
	cat := open(t)

	require.NoError(t, cat.SaveUploadID("upload-123"))
	id, ok, err := cat.UploadID()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "upload-123", id)
}

func TestCatalog_PartLifecycle(t *testing.T) {
	cat := open(t)

	require.NoError(t, cat.CreatePart(Part{Number: 1, Offset: 0, Length: 30}))
	require.NoError(t, cat.CreatePart(Part{Number: 2, Offset: 30, Length: 30}))

	pending, err := cat.PendingParts()
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, cat.MovePartToUploaded(1, Part{Number: 1, Offset: 0, Length: 30, ETag: "etag-1"}))

	pending, err = cat.PendingParts()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Number)

	uploaded, err := cat.UploadedParts()
	require.NoError(t, err)
	require.Len(t, uploaded, 1)
	assert.Equal(t, "etag-1", uploaded[0].ETag)
}

func TestCatalog_SaveETagMarksSessionComplete(t *testing.T) {
	cat := open(t)

	require.NoError(t, cat.SaveETag("final-etag"))
	etag, ok, err := cat.Check()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "final-etag", etag)
}

func TestCatalog_ClearParts(t *testing.T) {
	cat := open(t)

	require.NoError(t, cat.CreatePart(Part{Number: 1, Offset: 0, Length: 10}))
	require.NoError(t, cat.ClearParts())

	pending, err := cat.PendingParts()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCatalog_ResumeAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	cat, err := Open(dir, [8]byte{9, 9, 9, 9}, "resume/object", 42, "feedface")
	require.NoError(t, err)
	require.NoError(t, cat.SaveUploadID("upload-resume"))
	require.NoError(t, cat.CreatePart(Part{Number: 1, Offset: 0, Length: 10}))
	require.NoError(t, cat.Flush())
	require.NoError(t, cat.Close())

	reopened, err := Open(dir, [8]byte{9, 9, 9, 9}, "resume/object", 42, "feedface")
	require.NoError(t, err)
	defer reopened.Close()

	id, ok, err := reopened.UploadID()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "upload-resume", id)

	pending, err := reopened.PendingParts()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Number)
}
