package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "ingest", "citation", "explain", "providers"} {
		require.True(t, names[want], want)
	}
}

func TestReadPaperText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.txt")
	require.NoError(t, os.WriteFile(path, []byte("Body [1].\nReferences\n[1] A."), 0o644))

	in, err := readPaper(path, "Given")
	require.NoError(t, err)
	require.Equal(t, "Given", in.Title)
	require.Equal(t, "Body [1].\nReferences\n[1] A.", in.Text)

	_, err = readPaper(filepath.Join(t.TempDir(), "missing.txt"), "")
	require.Error(t, err)
}
