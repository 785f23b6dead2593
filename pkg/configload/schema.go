package configload

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema validation compiles each kind's JSON Schema once and caches it
// in a mutex-guarded map, rather than recompiling on every document.
var (
	schemaCacheMu sync.Mutex
	schemaCache   = map[Kind]*jsonschema.Schema{}
	schemaErrors  = map[Kind]error{}
)

// Validate checks body against the schema for kind, compiling and caching
// that schema on first use ("dispatches each document by kind...
// schema validation uses a typed shape descriptor").
func Validate(kind Kind, body map[string]any) error {
	schema, err := getCompiledSchema(kind)
	if err != nil {
		return gardenerr.Wrap(gardenerr.KindConfiguration, err, fmt.Sprintf("no schema registered for kind %q", kind))
	}
	if err := schema.Validate(body); err != nil {
		return gardenerr.Wrap(gardenerr.KindValidation, err, fmt.Sprintf("%s %q failed schema validation", kind, name(body)))
	}
	return nil
}

func name(body map[string]any) string {
	n, _ := body["name"].(string)
	return n
}

func getCompiledSchema(kind Kind) (*jsonschema.Schema, error) {
	schemaCacheMu.Lock()
	defer schemaCacheMu.Unlock()

	if s, ok := schemaCache[kind]; ok {
		return s, schemaErrors[kind]
	}

	doc, ok := schemaFor(kind)
	if !ok {
		err := fmt.Errorf("unknown document kind %q", kind)
		schemaErrors[kind] = err
		return nil, err
	}

	url := fmt.Sprintf("https://garden.io/schemas/%s.json", kind)
	schema, err := compileSchema(doc, url)
	schemaCache[kind] = schema
	schemaErrors[kind] = err
	return schema, err
}

func compileSchema(schemaJSON, url string) (*jsonschema.Schema, error) {
	log.Printf("Compiling JSON schema: %s", url)

	compiler := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("parsing embedded schema: %w", err)
	}
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	return compiler.Compile(url)
}
