package configload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/garden-io/garden-core/pkg/gardenerr"
	yaml "github.com/goccy/go-yaml"
)

// docSeparator matches a YAML document separator line ("UTF-8,
// ---separated multi-document").
var docSeparator = regexp.MustCompile(`(?m)^---[ \t]*$`)

// ParseFile reads one YAML file and returns every document it contains,
// each decoded to a map and tagged with its kind/name/source range. A
// document missing `kind` is a ConfigurationError, and so is a document of
// any kind other than Project that is missing `name`.
func ParseFile(path string) ([]RawDoc, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, gardenerr.Wrap(gardenerr.KindFilesystem, err, "reading config file").At(gardenerr.Location{File: path})
	}

	segments := splitDocuments(raw)
	basePath := dirOf(path)

	var docs []RawDoc
	for _, seg := range segments {
		if strings.TrimSpace(seg.text) == "" {
			continue
		}

		var body map[string]any
		if err := yaml.Unmarshal([]byte(seg.text), &body); err != nil {
			line, col := extractYAMLPosition(err, seg.startLine)
			return nil, gardenerr.New(gardenerr.KindValidation, fmt.Sprintf("invalid YAML: %v", err)).
				At(gardenerr.Location{File: path, Line: line, Column: col})
		}
		if body == nil {
			continue
		}

		kindRaw, ok := body["kind"].(string)
		if !ok || kindRaw == "" {
			return nil, gardenerr.New(gardenerr.KindConfiguration, "document is missing required field 'kind'").
				At(gardenerr.Location{File: path, Line: seg.startLine})
		}
		name, _ := body["name"].(string)
		if name == "" && Kind(kindRaw) != KindProject {
			return nil, gardenerr.New(gardenerr.KindConfiguration, "document is missing required field 'name'").
				At(gardenerr.Location{File: path, Line: seg.startLine})
		}

		docs = append(docs, RawDoc{
			Kind: Kind(kindRaw),
			Name: name,
			Body: body,
			Source: SourceRange{
				Path:      path,
				StartLine: seg.startLine,
				EndLine:   seg.startLine + strings.Count(seg.text, "\n"),
			},
			BasePath:       basePath,
			ConfigFilePath: path,
		})
	}
	return docs, nil
}

type docSegment struct {
	text      string
	startLine int
}

// splitDocuments splits a multi-document YAML file on `---` separator
// lines, tracking the 1-based start line of each segment so validation
// errors can cite an absolute line number within the original file.
func splitDocuments(raw string) []docSegment {
	locs := docSeparator.FindAllStringIndex(raw, -1)
	if len(locs) == 0 {
		return []docSegment{{text: raw, startLine: 1}}
	}

	var segs []docSegment
	prevEnd := 0
	line := 1
	for _, loc := range locs {
		text := raw[prevEnd:loc[0]]
		segs = append(segs, docSegment{text: text, startLine: line})
		line += strings.Count(text, "\n") + 1 // account for the separator line itself
		prevEnd = loc[1]
		if prevEnd < len(raw) && raw[prevEnd] == '\n' {
			prevEnd++ // the next segment starts on the line after the separator
		}
	}
	segs = append(segs, docSegment{text: raw[prevEnd:], startLine: line})
	return segs
}
