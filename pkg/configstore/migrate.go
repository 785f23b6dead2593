package configstore

import (
	"os"

	"gopkg.in/yaml.v3"
)

// tryMigrate reads legacyPath (if present) and reshapes any legacy field
// layouts it recognises into the current store shape. migrated=false if
// legacyPath does not exist or cannot be parsed — callers fall back to an
// empty store in that case.
func tryMigrate(legacyPath string) (map[string]map[string]any, bool) {
	b, err := os.ReadFile(legacyPath)
	if err != nil {
		return nil, false
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, false
	}

	out := map[string]map[string]any{}
	for section, value := range raw {
		sec, ok := value.(map[string]any)
		if !ok {
			continue
		}
		out[section] = migrateSection(section, sec)
	}
	return out, true
}

// migrateSection applies field-shape rewrites known to have changed
// across versions. Currently handles linkedModuleSources/
// linkedProjectSources: a legacy `[{name, path}, ...]` array becomes a
// `{name: {name, path}}` map keyed by name.
func migrateSection(section string, sec map[string]any) map[string]any {
	for _, key := range []string{"linkedModuleSources", "linkedProjectSources"} {
		arr, ok := sec[key].([]any)
		if !ok {
			continue
		}
		migrated := map[string]any{}
		for _, item := range arr {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, ok := entry["name"].(string)
			if !ok {
				continue
			}
			migrated[name] = entry
		}
		sec[key] = migrated
	}
	return sec
}
