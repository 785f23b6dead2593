package plugin

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToolCache_DownloadsVerifiesAndCaches(t *testing.T) {
	content := []byte("#!/bin/sh\necho hi\n")
	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cache := NewToolCache(dir)
	spec := ToolSpec{
		Name:    "kubectl",
		Version: "1.30.0",
		Platforms: map[string]ToolPlatform{
			platformKey(): {URL: srv.URL, SHA256: checksum},
		},
	}

	path, err := cache.Path("kubernetes", spec)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "kubernetes", "kubectl", "1.30.0", platformKey(), "kubectl"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, got)

	// Second call must be a cache hit: remove the server so a re-download
	// would fail, confirming Path() didn't refetch.
	srv.Close()
	path2, err := cache.Path("kubernetes", spec)
	require.NoError(t, err)
	require.Equal(t, path, path2)
}

func TestToolCache_ChecksumMismatchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("corrupted"))
	}))
	defer srv.Close()

	cache := NewToolCache(t.TempDir())
	spec := ToolSpec{
		Name:    "helm",
		Version: "3.0.0",
		Platforms: map[string]ToolPlatform{
			platformKey(): {URL: srv.URL, SHA256: "0000000000000000000000000000000000000000000000000000000000000000"},
		},
	}

	_, err := cache.Path("helm", spec)
	require.Error(t, err)
}

func TestToolCache_UnknownPlatformErrors(t *testing.T) {
	cache := NewToolCache(t.TempDir())
	spec := ToolSpec{
		Name:      "terraform",
		Version:   "1.0.0",
		Platforms: map[string]ToolPlatform{"made-up-platform": {URL: "http://example.invalid"}},
	}

	_, err := cache.Path("terraform", spec)
	require.Error(t, err)
}

func TestPlatformKey_MatchesRuntime(t *testing.T) {
	require.Equal(t, runtime.GOOS+"-"+runtime.GOARCH, platformKey())
}
