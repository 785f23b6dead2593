package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/graph"
	"github.com/garden-io/garden-core/pkg/plugin"
	"github.com/garden-io/garden-core/pkg/solver"
	"github.com/garden-io/garden-core/pkg/task"
	"github.com/stretchr/testify/require"
)

func fakeRegistry() *plugin.Registry {
	reg := plugin.NewRegistry()
	_ = reg.Register(&plugin.Plugin{
		Name: "fake",
		ActionTypes: map[string]*plugin.ActionType{
			"fake-type": {
				Name: "fake-type",
				Handlers: map[plugin.HandlerName]plugin.HandlerFunc{
					plugin.HandlerGetStatus: func(ctx context.Context, req any) (any, error) {
						return task.StatusResult{State: task.StateUnknown}, nil
					},
					plugin.HandlerBuild: func(ctx context.Context, req any) (any, error) {
						r := req.(ResolvedAction)
						return map[string]any{"built": r.Config.Name}, nil
					},
					plugin.HandlerDeploy: func(ctx context.Context, req any) (any, error) {
						r := req.(ResolvedAction)
						return map[string]any{"deployed": r.Config.Name, "dep": r.DependencyOutputs["api"]}, nil
					},
				},
			},
		},
	})
	return reg
}

func buildTestGraph(t *testing.T) *graph.ConfigGraph {
	t.Helper()
	basePath := t.TempDir()
	configs := []action.Config{
		{Kind: action.KindBuild, Type: "fake-type", Name: "api", Spec: map[string]any{}, Internal: action.Internal{BasePath: basePath}},
		{
			Kind: action.KindDeploy, Type: "fake-type", Name: "web",
			Build:        "api",
			Dependencies: []action.Ref{{Kind: action.KindBuild, Name: "api"}},
			Spec:         map[string]any{},
			Internal:     action.Internal{BasePath: basePath},
		},
	}
	g, err := graph.Build(configs, graph.Options{})
	require.NoError(t, err)
	return g
}

func TestExecute_RunsBuildThenDeploy(t *testing.T) {
	g := buildTestGraph(t)
	reg := fakeRegistry()

	results, ok, err := Execute(context.Background(), g, ExecuteOptions{
		Registry:         reg,
		ConcurrencyLimit: 2,
	})
	require.NoError(t, err)
	require.True(t, ok)

	key := task.Key{TaskKind: task.KindProcess, ActionKind: action.KindDeploy, Name: "web"}
	res, ok := results[key]
	require.True(t, ok)
	require.NoError(t, res.Err)
}

func TestExecute_RequiresRegistry(t *testing.T) {
	g := buildTestGraph(t)
	_, _, err := Execute(context.Background(), g, ExecuteOptions{})
	require.Error(t, err)
}

func TestExecute_StatusOnlySkipsProcessTasks(t *testing.T) {
	g := buildTestGraph(t)
	reg := fakeRegistry()

	results, ok, err := Execute(context.Background(), g, ExecuteOptions{
		Registry:   reg,
		StatusOnly: true,
	})
	require.NoError(t, err)
	require.True(t, ok)

	for k := range results {
		require.Equal(t, task.KindStatus, k.TaskKind)
	}
}

func TestExecute_TargetsRestrictToReachableSet(t *testing.T) {
	basePath := t.TempDir()
	configs := []action.Config{
		{Kind: action.KindBuild, Type: "fake-type", Name: "api", Spec: map[string]any{}, Internal: action.Internal{BasePath: basePath}},
		{Kind: action.KindBuild, Type: "fake-type", Name: "unrelated", Spec: map[string]any{}, Internal: action.Internal{BasePath: basePath}},
	}
	g, err := graph.Build(configs, graph.Options{})
	require.NoError(t, err)

	reg := fakeRegistry()
	results, ok, err := Execute(context.Background(), g, ExecuteOptions{
		Registry: reg,
		Targets:  []string{"api"},
	})
	require.NoError(t, err)
	require.True(t, ok)

	for k := range results {
		require.Equal(t, "api", k.Name)
	}
}

func TestExecute_StreamsSolverEvents(t *testing.T) {
	g := buildTestGraph(t)
	reg := fakeRegistry()

	var mu sync.Mutex
	var events []solver.Event
	_, ok, err := Execute(context.Background(), g, ExecuteOptions{
		Registry: reg,
		OnEvent: func(ev solver.Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.True(t, ok)
}
