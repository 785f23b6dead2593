package configload

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/garden-io/garden-core/pkg/gardenerr"
)

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func dirOf(path string) string {
	return filepath.Dir(path)
}

// WalkOptions controls which files the loader considers part of the
// project ("honouring dotIgnore entries and scan.include/scan.exclude
// globs").
type WalkOptions struct {
	// DotIgnore lists directory/file names to skip entirely (e.g.
	// ".git", "node_modules") — a small fixed ignore list rather than
	// parsing .gitignore.
	DotIgnore []string
	// Include/Exclude are doublestar glob patterns relative to RootDir.
	// An empty Include means "everything not excluded".
	Include []string
	Exclude []string
}

var defaultDotIgnore = []string{".git", ".garden", "node_modules", ".terraform"}

// Walk scans rootDir for `*.garden.yml`/`*.garden.yaml` files (Garden's
// config file convention) honouring the ignore/include/exclude rules, and
// parses every document in every matching file.
func Walk(rootDir string, opts WalkOptions) ([]RawDoc, error) {
	ignore := opts.DotIgnore
	if len(ignore) == 0 {
		ignore = defaultDotIgnore
	}

	var docs []RawDoc
	var errs gardenerr.List

	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			errs.Add(gardenerr.Wrap(gardenerr.KindFilesystem, err, "walking project root").At(gardenerr.Location{File: path}))
			return nil
		}
		rel, relErr := filepath.Rel(rootDir, path)
		if relErr != nil {
			rel = path
		}

		if d.IsDir() {
			if matchesAny(ignore, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isConfigFile(d.Name()) {
			return nil
		}
		if !matchesScan(rel, opts.Include, opts.Exclude) {
			return nil
		}

		fileDocs, parseErr := ParseFile(path)
		if parseErr != nil {
			errs.Add(parseErr)
			return nil
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, gardenerr.Wrap(gardenerr.KindFilesystem, err, "walking project root")
	}
	if errs.HasErrors() {
		return nil, errs.ErrOrNil()
	}
	return docs, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
	}
	return false
}

func isConfigFile(name string) bool {
	return strings.HasSuffix(name, ".garden.yml") || strings.HasSuffix(name, ".garden.yaml")
}

// matchesScan implements the include/exclude decision: a path is walked
// when it matches no exclude pattern, and either include is empty or it
// matches at least one include pattern.
func matchesScan(relPath string, include, exclude []string) bool {
	relPath = filepath.ToSlash(relPath)
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
