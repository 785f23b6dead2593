package version

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/garden-io/garden-core/pkg/gardenerr"
)

// FileEntry is one tracked file's contribution to a source fingerprint
// ("sorted list of tracked files... each entry (relative-path,
// content-hash)").
type FileEntry struct {
	Path string // relative to basePath, or absolute if outside it
	Hash string
}

// Fingerprint is the source half of an action's content hash: every
// tracked file under basePath (honouring include/exclude), plus any
// explicitly listed path outside basePath (varfiles, remote-source
// overlays), sorted for determinism.
type Fingerprint struct {
	Files []FileEntry
}

// ComputeFingerprint walks basePath, hashing every file that matches
// include/exclude (empty include means "everything not excluded"), and
// additionally hashes each entry in externalPaths by its own absolute or
// caller-relative path ("files outside the repository root are
// tracked by absolute path and content hash").
func ComputeFingerprint(basePath string, include, exclude []string, externalPaths []string) (Fingerprint, error) {
	var entries []FileEntry

	err := filepath.WalkDir(basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return gardenerr.Wrap(gardenerr.KindFilesystem, err, "walking action source").At(gardenerr.Location{File: path})
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(basePath, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if !matchesTracked(rel, include, exclude) {
			return nil
		}
		hash, hashErr := hashFile(path)
		if hashErr != nil {
			return hashErr
		}
		entries = append(entries, FileEntry{Path: rel, Hash: hash})
		return nil
	})
	if err != nil {
		if _, ok := err.(*gardenerr.Error); ok {
			return Fingerprint{}, err
		}
		return Fingerprint{}, gardenerr.Wrap(gardenerr.KindFilesystem, err, "walking action source")
	}

	for _, p := range externalPaths {
		hash, hashErr := hashFile(p)
		if hashErr != nil {
			return Fingerprint{}, hashErr
		}
		abs, absErr := filepath.Abs(p)
		if absErr != nil {
			abs = p
		}
		entries = append(entries, FileEntry{Path: abs, Hash: hash})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return Fingerprint{Files: entries}, nil
}

func matchesTracked(relPath string, include, exclude []string) bool {
	for _, pat := range exclude {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pat := range include {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return true
		}
	}
	return false
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", gardenerr.Wrap(gardenerr.KindFilesystem, err, "reading tracked file").At(gardenerr.Location{File: path})
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", gardenerr.Wrap(gardenerr.KindFilesystem, err, "hashing tracked file").At(gardenerr.Location{File: path})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
