package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("S2_API_KEY", "")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.APIAddr)
	require.Equal(t, 800, cfg.ChunkSize)
	require.Equal(t, 150, cfg.ChunkOverlap)
	require.Equal(t, "chars", cfg.ChunkUnit)
	require.Equal(t, VectorBackendPostgres, cfg.VectorBackend)
	require.Equal(t, 600, cfg.CitationWindow)
	require.Equal(t, 60*time.Second, cfg.LLMTimeout)
	require.Equal(t, 30*time.Second, cfg.PDFFetchTimeout)
	require.True(t, cfg.AuditLLMCalls)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PAPERLENS_CHUNK_SIZE", "400")
	t.Setenv("PAPERLENS_VECTOR_BACKEND", "MEMORY")
	t.Setenv("PAPERLENS_SCHOLAR_MIN_INTERVAL", "250ms")
	t.Setenv("S2_API_KEY", "s2-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 400, cfg.ChunkSize)
	require.Equal(t, VectorBackendMemory, cfg.VectorBackend)
	require.Equal(t, 250*time.Millisecond, cfg.ScholarMinInterval)
	require.Equal(t, "s2-secret", cfg.ScholarAPIKey)
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "paperlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("qa_top_k: 3\nchunk_unit: words\nchunk_size: 500\nchunk_overlap: 50\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.QATopK)
	require.Equal(t, "words", cfg.ChunkUnit)
	require.Equal(t, 500, cfg.ChunkSize)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PAPERLENS_CHUNK_OVERLAP":  "800",
		"PAPERLENS_VECTOR_BACKEND": "sqlite",
		"PAPERLENS_CHUNK_UNIT":     "tokens",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			isolate(t)
			t.Setenv(key, val)
			_, err := Load("")
			require.Error(t, err)
		})
	}
}
