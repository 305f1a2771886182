package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasAllSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"put", "get", "ls", "rm", "share", "stream", "cb"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestPutCmd_RequiresTwoArgs(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"put", "onlyonearg"})
	err := root.Execute()
	require.Error(t, err)
}

func TestShareCmd_DefaultExpire(t *testing.T) {
	cmd := newShareCmd(&globalFlags{})
	f := cmd.Flags().Lookup("expire")
	require.NotNil(t, f)
	assert.Equal(t, "43200", f.DefValue)
}

func TestParseMeta(t *testing.T) {
	got := parseMeta([]string{"a=1", "b=2", "malformed"})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "file.txt", baseName("/a/b/file.txt"))
	assert.Equal(t, "file.txt", baseName("file.txt"))
}
