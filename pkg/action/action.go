// Package action holds the core data model shared by the Module-to-Action
// Converter, Action Graph Builder, Task Model, and Solver:
// the ActionConfig shape that a YAML document (or a module conversion, or
// a ConfigTemplate expansion) ultimately becomes before it enters the
// graph builder.
package action

// Kind is one of the four action kinds the graph understands. Unlike
// configload.Kind (a document kind — Project, Module, ConfigTemplate,
// ...), Kind only ever takes one of these four values once a document has
// become (or converted into) an action.
type Kind string

const (
	KindBuild  Kind = "Build"
	KindDeploy Kind = "Deploy"
	KindRun    Kind = "Run"
	KindTest   Kind = "Test"
)

// Ref is a reference to another action, as it appears in `dependencies` or
// a `build:` field.
type Ref struct {
	Kind Kind
	Name string
}

// RemoteSource is a `source` pointing at a remote repository; Revision is
// required for any remote source ("a required revision suffix").
type RemoteSource struct {
	Repository string
	Revision   string
}

// Source is the action's `source` field: either inline (the config's own
// directory), a local relative path, or a remote repository reference.
type Source struct {
	LocalPath string        // empty means "inline", i.e. the config's own basePath
	Remote    *RemoteSource // non-nil for a remote repository source
}

// Internal holds the engine-managed fields the core stamps onto every
// action, never author-supplied.
type Internal struct {
	BasePath       string
	ConfigFilePath string
	GroupName      string
	Mode           string // "default" | "sync" | "local"
}

// VersionPolicy customises how the version cache folds this action's
// config body into its content hash: dotted field paths to strip
// entirely, and dotted/bracket value paths (wildcards allowed at array
// positions, e.g. `spec.artifacts.*.target`) whose values are replaced by a
// sentinel before hashing instead of being removed.
type VersionPolicy struct {
	ExcludeFields []string
	ExcludeValues []string
}

// Config is an ActionConfig: a declarative, not-yet-preprocessed action
// specification.
type Config struct {
	Kind         Kind
	Type         string
	Name         string
	Dependencies []Ref
	Disabled     bool
	Source       Source
	Include      []string
	Exclude      []string
	Variables    map[string]any
	Varfiles     []string
	Timeout      int
	Spec         map[string]any
	Internal     Internal
	Version      VersionPolicy

	// Build names the action this one implicitly depends on via a
	// `build:` field (Run/Deploy/Test only). Empty means none declared.
	Build string
}

// Mode returns the action's declared execution mode, defaulting to
// "default" when Internal.Mode is unset.
func (c *Config) Mode() string {
	if c.Internal.Mode == "" {
		return "default"
	}
	return c.Internal.Mode
}

// IsCompatible reports whether c's Type matches typ, exactly — base-type
// inheritance is a plugin/handler-registry concern, not an action-config
// concern.
func (c *Config) IsCompatible(typ string) bool {
	return c.Type == typ
}

// DefaultTimeoutSeconds returns the kind-specific default timeout
// ("timeout... has kind-specific defaults") used when a config omits
// one.
func DefaultTimeoutSeconds(kind Kind) int {
	switch kind {
	case KindBuild:
		return 600
	case KindDeploy:
		return 300
	case KindRun:
		return 600
	case KindTest:
		return 600
	default:
		return 300
	}
}
