// Package version implements content-hash action versioning and the
// on-disk result cache it keys.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/mitchellh/hashstructure/v2"
)

// excludeSentinel replaces a value.excludeValues match; any two actions
// differing only in such a value hash identically.
const excludeSentinel = "<excluded>"

// Inputs bundles everything ComputeVersion needs beyond the action's own
// config: its source fingerprint and the already-computed versions of its
// Build dependencies, folded in recursively — the caller is responsible
// for topological order so dependency versions are available before
// their dependents'.
type Inputs struct {
	Fingerprint      Fingerprint
	BuildDepVersions []string // versions of all Build dependencies, any order
}

// ComputeVersion derives cfg's content-hash version: its source
// fingerprint, its normalised config body (ExcludeFields stripped,
// ExcludeValues sentinel-replaced), and its Build dependencies' versions,
// folded together and rendered as a short `v-`-prefixed identifier.
func ComputeVersion(cfg *action.Config, in Inputs) (string, error) {
	body, err := normalizeBody(cfg)
	if err != nil {
		return "", err
	}
	bodyHash, err := hashstructure.Hash(body, hashstructure.FormatV2, nil)
	if err != nil {
		return "", gardenerr.Wrap(gardenerr.KindPlugin, err, "hashing normalised config body")
	}

	h := sha256.New()
	for _, f := range in.Fingerprint.Files {
		fmt.Fprintf(h, "file:%s=%s\n", f.Path, f.Hash)
	}
	fmt.Fprintf(h, "body:%x\n", bodyHash)

	deps := append([]string(nil), in.BuildDepVersions...)
	sort.Strings(deps)
	for _, d := range deps {
		fmt.Fprintf(h, "dep:%s\n", d)
	}

	return "v-" + hex.EncodeToString(h.Sum(nil))[:16], nil
}

// normalizeBody produces a deep copy of cfg's Spec and Variables with
// ExcludeFields removed and ExcludeValues replaced by a sentinel, so the
// version is stable across changes the author declared irrelevant.
func normalizeBody(cfg *action.Config) (map[string]any, error) {
	raw := map[string]any{
		"kind":      string(cfg.Kind),
		"type":      cfg.Type,
		"name":      cfg.Name,
		"spec":      cfg.Spec,
		"variables": cfg.Variables,
		"timeout":   cfg.Timeout,
	}

	body, err := deepCopyViaJSON(raw)
	if err != nil {
		return nil, gardenerr.Wrap(gardenerr.KindPlugin, err, "normalising config body for versioning")
	}

	for _, field := range cfg.Version.ExcludeFields {
		stripField(body, splitPath(field))
	}
	for _, value := range cfg.Version.ExcludeValues {
		replaceValue(body, splitPath(value), excludeSentinel)
	}
	return body, nil
}

func splitPath(dotted string) []string {
	var segs []string
	var cur []byte
	for i := 0; i < len(dotted); i++ {
		c := dotted[i]
		if c == '.' {
			segs = append(segs, string(cur))
			cur = cur[:0]
			continue
		}
		cur = append(cur, c)
	}
	segs = append(segs, string(cur))
	return segs
}

func deepCopyViaJSON(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// stripField deletes the map entry at path, recursing through "*"
// wildcard segments over array positions ("[spec, artifacts, \"*\",
// target]").
func stripField(node any, path []string) {
	if len(path) == 0 {
		return
	}
	if path[0] == "*" {
		if arr, ok := node.([]any); ok {
			for _, item := range arr {
				stripField(item, path[1:])
			}
		}
		return
	}
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	if len(path) == 1 {
		delete(m, path[0])
		return
	}
	if child, exists := m[path[0]]; exists {
		stripField(child, path[1:])
	}
}

// replaceValue sets the value at path to sentinel, recursing through "*"
// wildcard segments over array positions.
func replaceValue(node any, path []string, sentinel string) {
	if len(path) == 0 {
		return
	}
	if path[0] == "*" {
		if arr, ok := node.([]any); ok {
			for i := range arr {
				if len(path) == 1 {
					arr[i] = sentinel
				} else {
					replaceValue(arr[i], path[1:], sentinel)
				}
			}
		}
		return
	}
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	if len(path) == 1 {
		if _, exists := m[path[0]]; exists {
			m[path[0]] = sentinel
		}
		return
	}
	if child, exists := m[path[0]]; exists {
		replaceValue(child, path[1:], sentinel)
	}
}
