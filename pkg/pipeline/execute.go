package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/graph"
	"github.com/garden-io/garden-core/pkg/plugin"
	"github.com/garden-io/garden-core/pkg/solver"
	"github.com/garden-io/garden-core/pkg/task"
	"github.com/garden-io/garden-core/pkg/template"
	"github.com/garden-io/garden-core/pkg/tmplcontext"
	"github.com/garden-io/garden-core/pkg/version"
)

// ResolvedAction is the payload a plugin handler receives: the action's
// declared config, its resolved spec (framework-level fields evaluated,
// `spec`/`variables` evaluated against the full ActionSpec context), its
// content-hash version, and the outputs of every action it depends on.
type ResolvedAction struct {
	Config            action.Config
	Version           string
	DependencyOutputs map[string]map[string]any
}

var processHandler = map[action.Kind]plugin.HandlerName{
	action.KindBuild:  plugin.HandlerBuild,
	action.KindDeploy: plugin.HandlerDeploy,
	action.KindRun:    plugin.HandlerRun,
	action.KindTest:   plugin.HandlerTest,
}

var priorityByKind = map[action.Kind]int{
	action.KindBuild:  solver.PriorityBuild,
	action.KindDeploy: solver.PriorityDeploy,
	action.KindRun:    solver.PriorityRunTest,
	action.KindTest:   solver.PriorityRunTest,
}

// ExecuteOptions configures one Execute run.
type ExecuteOptions struct {
	ProjectName          string
	ProjectVariables     map[string]any
	EnvironmentName      string
	EnvironmentVariables map[string]any
	Providers            tmplcontext.ProviderOutputs

	Registry *plugin.Registry
	Cache    *version.Cache

	// Targets, when non-empty, restricts execution to the named actions
	// and everything they transitively depend on, rather than every
	// action in the graph.
	Targets []string

	// OnEvent, when set, receives every Solver lifecycle event as it is
	// emitted, for a command that wants to stream progress (e.g. as
	// NDJSON) while the graph runs.
	OnEvent func(solver.Event)

	Force            bool
	Mode             string
	ThrowOnError     bool
	StatusOnly       bool
	ConcurrencyLimit int
	MaxRetries       int
	GraceWindow      time.Duration
}

// selectReachable returns the set of (kind, name) refs reachable from
// every node whose name is in targets, following status/process
// dependency edges. A nil return (targets empty) means "everything".
func selectReachable(g *graph.ConfigGraph, targets []string) map[action.Ref]bool {
	if len(targets) == 0 {
		return nil
	}
	want := map[string]bool{}
	for _, t := range targets {
		want[t] = true
	}

	var queue []action.Ref
	for _, n := range g.All() {
		if want[n.Config.Name] {
			queue = append(queue, action.Ref{Kind: n.Config.Kind, Name: n.Config.Name})
		}
	}

	visited := map[action.Ref]bool{}
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if visited[ref] {
			continue
		}
		visited[ref] = true
		n, ok := g.Get(ref.Kind, ref.Name)
		if !ok {
			continue
		}
		for _, d := range n.StatusDeps {
			if !visited[d] {
				queue = append(queue, d)
			}
		}
		for _, d := range n.ProcessDeps {
			if !visited[d] {
				queue = append(queue, d)
			}
		}
	}
	return visited
}

// outputStore collects the outputs of completed tasks, keyed by action
// name, so a dependent's handler invocation can read
// `actions.<name>.outputs.*` once the Solver has guaranteed that
// dependency already finished.
type outputStore struct {
	mu sync.Mutex
	m  map[string]map[string]any
}

func newOutputStore() *outputStore {
	return &outputStore{m: map[string]map[string]any{}}
}

func (s *outputStore) set(name string, outputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[name] = outputs
}

func (s *outputStore) snapshot() map[string]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]any, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Execute drives the given graph to completion: for every node it
// computes a content-hash version, materialises the status/process task
// pair, consults the result cache, and dispatches to the node's plugin
// handlers, wiring the whole thing into one Solver run so independent
// branches execute concurrently and a dependency failure aborts only its
// own descendants.
func Execute(ctx context.Context, g *graph.ConfigGraph, opts ExecuteOptions) (map[task.Key]solver.Result, bool, error) {
	if opts.Registry == nil {
		return nil, false, gardenerr.New(gardenerr.KindConfiguration, "Execute requires a plugin registry")
	}
	mode := opts.Mode
	if mode == "" {
		mode = "default"
	}

	outputs := newOutputStore()
	var statusMu sync.Mutex
	statusResults := map[task.Key]task.StatusResult{}
	baseCtx := buildBaseContext(opts)

	selected := selectReachable(g, opts.Targets)

	var specs []solver.Spec
	nodes := g.All()

	for _, n := range nodes {
		if selected != nil && !selected[action.Ref{Kind: n.Config.Kind, Name: n.Config.Name}] {
			continue
		}
		cfg := n.Config
		fp, err := version.ComputeFingerprint(cfg.Internal.BasePath, cfg.Include, cfg.Exclude, nil)
		if err != nil {
			return nil, false, err
		}
		ver, err := version.ComputeVersion(&cfg, version.Inputs{Fingerprint: fp})
		if err != nil {
			return nil, false, err
		}

		edges := task.DependencyEdges{StatusDeps: n.StatusDeps, ProcessDeps: n.ProcessDeps}
		st, pt := task.BuildPair(&cfg, edges, opts.Force, ver, mode)

		handlerName, ok := processHandler[cfg.Kind]
		if !ok {
			return nil, false, gardenerr.Newf(gardenerr.KindConfiguration, "no process handler for action kind %s", cfg.Kind)
		}

		statusSpec := solver.Spec{
			Key:          st.Key(),
			Dependencies: append(append([]task.Key(nil), st.StatusDeps...), st.ProcessDeps...),
			Priority:     priorityByKind[cfg.Kind],
			Timeout:      time.Duration(cfg.Timeout) * time.Second,
			Run: func(ctx context.Context) (any, error) {
				result, err := runStatusTask(ctx, opts.Registry, opts.Cache, baseCtx, cfg, st, outputs)
				if err != nil {
					return nil, err
				}
				statusMu.Lock()
				statusResults[st.Key()] = result
				statusMu.Unlock()
				if result.State == task.StateReady {
					outputs.set(cfg.Name, result.Outputs)
				}
				return result, nil
			},
		}
		specs = append(specs, statusSpec)

		if opts.StatusOnly {
			continue
		}

		processDeps := append(append([]task.Key(nil), pt.ProcessDeps...), st.Key())
		processSpec := solver.Spec{
			Key:          pt.Key(),
			Dependencies: processDeps,
			Priority:     priorityByKind[cfg.Kind],
			Timeout:      time.Duration(cfg.Timeout) * time.Second,
			Run: func(ctx context.Context) (any, error) {
				statusMu.Lock()
				status := statusResults[st.Key()]
				statusMu.Unlock()

				if task.ShouldSkipProcess(opts.Force, status) {
					outputs.set(cfg.Name, status.Outputs)
					return status.Outputs, nil
				}

				result, err := runProcessTask(ctx, opts.Registry, handlerName, baseCtx, cfg, pt, outputs)
				if err != nil {
					return nil, err
				}
				outputs.set(cfg.Name, result)
				if opts.Cache != nil {
					_ = opts.Cache.Set(pt.CacheKey, result)
				}
				return result, nil
			},
		}
		specs = append(specs, processSpec)
	}

	s := solver.New(solver.Options{
		ThrowOnError:     opts.ThrowOnError,
		StatusOnly:       opts.StatusOnly,
		ConcurrencyLimit: opts.ConcurrencyLimit,
		MaxRetries:       opts.MaxRetries,
		GraceWindow:      opts.GraceWindow,
	})

	if opts.OnEvent != nil {
		go func() {
			for ev := range s.Events() {
				opts.OnEvent(ev)
			}
		}()
	}

	return s.Run(ctx, specs)
}

func runStatusTask(ctx context.Context, reg *plugin.Registry, cache *version.Cache, base *tmplcontext.Context, cfg action.Config, st *task.StatusTask, outputs *outputStore) (task.StatusResult, error) {
	if !st.Force && cache != nil {
		var cached map[string]any
		if hit, err := cache.Get(st.CacheKey, &cached); err == nil && hit {
			return task.StatusResult{State: task.StateReady, Outputs: cached}, nil
		}
	}

	if _, _, ok := reg.FindActionType(cfg.Type); !ok {
		return task.StatusResult{}, gardenerr.Newf(gardenerr.KindPlugin, "unknown action type %q", cfg.Type)
	}
	handler, err := reg.Lookup(ownerPlugin(reg, cfg.Type), cfg.Type, plugin.HandlerGetStatus)
	if err != nil {
		return task.StatusResult{State: task.StateUnknown}, nil
	}

	resolved, depOutputs, err := resolveAction(base, cfg, outputs)
	if err != nil {
		return task.StatusResult{}, err
	}
	req := ResolvedAction{Config: resolved, Version: st.Version, DependencyOutputs: depOutputs}
	raw, err := handler(ctx, req)
	if err != nil {
		return task.StatusResult{}, err
	}
	result, _ := raw.(task.StatusResult)
	return result, nil
}

func runProcessTask(ctx context.Context, reg *plugin.Registry, handlerName plugin.HandlerName, base *tmplcontext.Context, cfg action.Config, pt *task.ProcessTask, outputs *outputStore) (map[string]any, error) {
	handler, err := reg.Lookup(ownerPlugin(reg, cfg.Type), cfg.Type, handlerName)
	if err != nil {
		return nil, err
	}
	resolved, depOutputs, err := resolveAction(base, cfg, outputs)
	if err != nil {
		return nil, err
	}
	req := ResolvedAction{Config: resolved, Version: pt.Version, DependencyOutputs: depOutputs}
	raw, err := handler(ctx, req)
	if err != nil {
		return nil, err
	}
	result, _ := raw.(map[string]any)
	return result, nil
}

func ownerPlugin(reg *plugin.Registry, typeName string) string {
	p, _, ok := reg.FindActionType(typeName)
	if !ok {
		return ""
	}
	return p.Name
}

// buildBaseContext assembles the Project -> Environment -> Provider layers
// shared by every action in one Execute run.
func buildBaseContext(opts ExecuteOptions) *tmplcontext.Context {
	proj := tmplcontext.NewProjectContext(opts.ProjectName, opts.ProjectVariables)
	env := tmplcontext.NewEnvironmentContext(proj, opts.EnvironmentName, opts.ProjectVariables, opts.EnvironmentVariables)
	return tmplcontext.NewProviderContext(env, opts.Providers)
}

// resolveAction layers the full ActionSpec context over base using
// the outputs gathered so far, then evaluates cfg.Spec against it —
// `actions.<name>.outputs.*` references are concrete for every dependency
// by the time the Solver schedules this task, since its Spec.Dependencies
// guarantee those tasks already completed.
func resolveAction(base *tmplcontext.Context, cfg action.Config, outputs *outputStore) (action.Config, map[string]map[string]any, error) {
	depOutputs := outputs.snapshot()
	full := tmplcontext.NewActionFullContext(base,
		tmplcontext.ActionIdentity{Name: cfg.Name, Kind: string(cfg.Kind), Type: cfg.Type},
		nil, nil, cfg.Variables, depOutputs, nil)

	val, err := template.BuildValue(cfg.Spec, full, template.ModeStrict, false)
	if err != nil {
		return action.Config{}, nil, gardenerr.Wrap(gardenerr.KindTemplate, err, "resolving spec for "+cfg.Name)
	}
	resolved := cfg
	if m, ok := template.ToNative(val).(map[string]any); ok {
		resolved.Spec = m
	}
	return resolved, depOutputs, nil
}
