package plugin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/logger"
)

var toolLog = logger.New("plugin.tools")

// ToolPlatform describes where to fetch a tool binary for one
// GOOS-GOARCH pair and how to verify it.
type ToolPlatform struct {
	URL      string
	SHA256   string
	Extract  string // optional: path within an archive to extract, empty for a bare binary
}

// ToolSpec is a plugin-declared external binary dependency: a name,
// version, and a platform→download mapping.
type ToolSpec struct {
	Name      string
	Version   string
	Platforms map[string]ToolPlatform // key: "<GOOS>-<GOARCH>", e.g. "linux-amd64"
}

// ToolCache resolves and populates the per-user tool cache directory
// (`~/.garden/tools/<plugin>/<tool>/<version>/<platform>-<arch>/`).
type ToolCache struct {
	baseDir string
	client  *http.Client
}

func NewToolCache(baseDir string) *ToolCache {
	return &ToolCache{baseDir: baseDir, client: http.DefaultClient}
}

func DefaultToolCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", gardenerr.Wrap(gardenerr.KindFilesystem, err, "resolving home directory for tool cache")
	}
	return filepath.Join(home, ".garden", "tools"), nil
}

func platformKey() string {
	return fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
}

// Path returns the on-disk path to pluginName's tool, downloading and
// verifying it first if it is not already cached. The rename into place
// is atomic, so a process crashed mid-download never leaves a
// partially-written binary at the final path.
func (c *ToolCache) Path(pluginName string, spec ToolSpec) (string, error) {
	plat := platformKey()
	entry, ok := spec.Platforms[plat]
	if !ok {
		return "", gardenerr.Newf(gardenerr.KindPlugin, "tool %q (plugin %q) has no download for platform %q", spec.Name, pluginName, plat)
	}

	dir := filepath.Join(c.baseDir, pluginName, spec.Name, spec.Version, plat)
	dest := filepath.Join(dir, spec.Name)

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", gardenerr.Wrap(gardenerr.KindFilesystem, err, "creating tool cache directory "+dir)
	}

	toolLog.Printf("downloading tool %s/%s@%s for %s", pluginName, spec.Name, spec.Version, plat)
	tmp, err := c.download(entry.URL)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	if entry.SHA256 != "" {
		if err := verifyChecksum(tmp, entry.SHA256); err != nil {
			return "", err
		}
	}

	if err := os.Chmod(tmp, 0o755); err != nil {
		return "", gardenerr.Wrap(gardenerr.KindFilesystem, err, "setting tool executable bit")
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", gardenerr.Wrap(gardenerr.KindFilesystem, err, "installing tool into cache")
	}
	return dest, nil
}

func (c *ToolCache) download(url string) (string, error) {
	resp, err := c.client.Get(url)
	if err != nil {
		return "", gardenerr.Wrap(gardenerr.KindTransient, err, "downloading tool from "+url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", gardenerr.Newf(gardenerr.KindTransient, "downloading tool from %s: HTTP %d", url, resp.StatusCode)
	}

	f, err := os.CreateTemp("", "garden-tool-*")
	if err != nil {
		return "", gardenerr.Wrap(gardenerr.KindFilesystem, err, "creating temp file for tool download")
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", gardenerr.Wrap(gardenerr.KindTransient, err, "writing downloaded tool to disk")
	}
	return f.Name(), nil
}

func verifyChecksum(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return gardenerr.Wrap(gardenerr.KindFilesystem, err, "opening downloaded tool for checksum verification")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return gardenerr.Wrap(gardenerr.KindFilesystem, err, "hashing downloaded tool")
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return gardenerr.Newf(gardenerr.KindPlugin, "tool checksum mismatch: want %s, got %s", want, got)
	}
	return nil
}
