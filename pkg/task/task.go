// Package task wraps each action selected by a user request into a
// status/process task pair, with the dependency-edge splitting rules
// that let the Solver skip work whose status already reports ready.
package task

import (
	"fmt"

	"github.com/garden-io/garden-core/pkg/action"
)

// ExecutionState is one of ExecutedAction's possible states.
type ExecutionState string

const (
	StateReady      ExecutionState = "ready"
	StateNotReady   ExecutionState = "not-ready"
	StateProcessing ExecutionState = "processing"
	StateFailed     ExecutionState = "failed"
	StateUnknown    ExecutionState = "unknown"
	StateOutdated   ExecutionState = "outdated"
)

// ExecutedAction pairs a ResolvedAction's outputs with its execution
// state.
type ExecutedAction struct {
	State   ExecutionState
	Outputs map[string]any
}

// Kind distinguishes a status task from a process task.
type Kind string

const (
	KindStatus  Kind = "status"
	KindProcess Kind = "process"
)

// Key identifies one task instance for dependency-edge and cache-key
// purposes.
type Key struct {
	TaskKind   Kind
	ActionKind action.Kind
	Name       string
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%s.%s)", k.TaskKind, k.ActionKind, k.Name)
}

// CacheKey is the on-disk result-cache key ("(kind, name, version,
// mode)").
type CacheKey struct {
	Kind    action.Kind
	Name    string
	Version string
	Mode    string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s/%s@%s#%s", k.Kind, k.Name, k.Version, k.Mode)
}

// StatusTask asks "is this action already in the desired state?"
type StatusTask struct {
	Action      *action.Config
	Force       bool
	Version     string
	CacheKey    CacheKey
	StatusDeps  []Key // status tasks of static dependencies
	ProcessDeps []Key // process tasks of runtime dependencies
}

func (t *StatusTask) Key() Key {
	return Key{TaskKind: KindStatus, ActionKind: t.Action.Kind, Name: t.Action.Name}
}

// ProcessTask actually performs the action.
type ProcessTask struct {
	Action      *action.Config
	Version     string
	CacheKey    CacheKey
	ProcessDeps []Key // process tasks of all dependencies (build, static, runtime)
}

func (t *ProcessTask) Key() Key {
	return Key{TaskKind: KindProcess, ActionKind: t.Action.Kind, Name: t.Action.Name}
}

// DependencyEdges is the minimal view of a graph node's classified
// dependencies the task pair needs — decoupling this package from
// pkg/graph's Node type.
type DependencyEdges struct {
	StatusDeps  []action.Ref // deps needing only static outputs
	ProcessDeps []action.Ref // deps needing executed (runtime) outputs
}

// BuildPair materialises the status/process task pair for cfg, per the
// edge-splitting rules:
//   - StatusTask.StatusDeps = status tasks of cfg's static dependencies.
//   - StatusTask.ProcessDeps = process tasks of cfg's runtime dependencies.
//   - ProcessTask.ProcessDeps = process tasks of ALL dependencies.
func BuildPair(cfg *action.Config, deps DependencyEdges, force bool, version string, mode string) (*StatusTask, *ProcessTask) {
	cacheKey := CacheKey{Kind: cfg.Kind, Name: cfg.Name, Version: version, Mode: mode}

	st := &StatusTask{
		Action:   cfg,
		Force:    force,
		Version:  version,
		CacheKey: cacheKey,
	}
	for _, d := range deps.StatusDeps {
		st.StatusDeps = append(st.StatusDeps, Key{TaskKind: KindStatus, ActionKind: d.Kind, Name: d.Name})
	}
	for _, d := range deps.ProcessDeps {
		st.ProcessDeps = append(st.ProcessDeps, Key{TaskKind: KindProcess, ActionKind: d.Kind, Name: d.Name})
	}

	pt := &ProcessTask{
		Action:   cfg,
		Version:  version,
		CacheKey: cacheKey,
	}
	allDeps := append(append([]action.Ref(nil), deps.StatusDeps...), deps.ProcessDeps...)
	for _, d := range allDeps {
		pt.ProcessDeps = append(pt.ProcessDeps, Key{TaskKind: KindProcess, ActionKind: d.Kind, Name: d.Name})
	}

	return st, pt
}

// StatusResult is a StatusTask's outcome.
type StatusResult struct {
	State        ExecutionState // StateReady, StateNotReady, or StateUnknown
	Outputs      map[string]any
	ForceRerun   bool // plugin flagged that processing must run even if ready
}

// ShouldSkipProcess reports whether a ProcessTask should be skipped
// (result = the StatusTask's ready result): true iff force=false, the
// StatusTask returned ready, and the plugin did not flag a forced re-run.
func ShouldSkipProcess(force bool, status StatusResult) bool {
	return !force && status.State == StateReady && !status.ForceRerun
}
