package solver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/task"
	"github.com/stretchr/testify/require"
)

func statusKey(kind action.Kind, name string) task.Key {
	return task.Key{TaskKind: task.KindStatus, ActionKind: kind, Name: name}
}

func recordingRun(order *[]string, mu *sync.Mutex, name string) RunFunc {
	return func(ctx context.Context) (any, error) {
		mu.Lock()
		*order = append(*order, name)
		mu.Unlock()
		return name, nil
	}
}

func TestRun_LinearDependencyChainExecutesInOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex

	specs := []Spec{
		{Key: statusKey(action.KindBuild, "api"), Run: recordingRun(&order, &mu, "api")},
		{
			Key:          statusKey(action.KindDeploy, "web"),
			Dependencies: []task.Key{statusKey(action.KindBuild, "api")},
			Run:          recordingRun(&order, &mu, "web"),
		},
	}

	s := New(Options{})
	results, success, err := s.Run(context.Background(), specs)
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, []string{"api", "web"}, order)
	require.Equal(t, "web", results[statusKey(action.KindDeploy, "web")].Value)
}

func TestRun_IndependentTasksRunConcurrently(t *testing.T) {
	var running int32
	var sawBoth atomic.Bool
	block := make(chan struct{})

	mkRun := func() RunFunc {
		return func(ctx context.Context) (any, error) {
			n := atomic.AddInt32(&running, 1)
			if n >= 2 {
				sawBoth.Store(true)
			}
			<-block
			atomic.AddInt32(&running, -1)
			return nil, nil
		}
	}

	specs := []Spec{
		{Key: statusKey(action.KindDeploy, "a"), Run: mkRun()},
		{Key: statusKey(action.KindDeploy, "b"), Run: mkRun()},
	}

	s := New(Options{ConcurrencyLimit: 4})
	done := make(chan struct{})
	go func() {
		_, _, _ = s.Run(context.Background(), specs)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	close(block)
	<-done

	require.True(t, sawBoth.Load(), "expected both independent tasks to run concurrently")
}

func TestRun_FailedTaskAbortsDependents(t *testing.T) {
	failing := func(ctx context.Context) (any, error) {
		return nil, gardenerr.New(gardenerr.KindPlugin, "build failed")
	}
	var ranDependent bool
	dependent := func(ctx context.Context) (any, error) {
		ranDependent = true
		return nil, nil
	}

	specs := []Spec{
		{Key: statusKey(action.KindBuild, "api"), Run: failing},
		{
			Key:          statusKey(action.KindDeploy, "web"),
			Dependencies: []task.Key{statusKey(action.KindBuild, "api")},
			Run:          dependent,
		},
	}

	s := New(Options{})
	results, success, err := s.Run(context.Background(), specs)
	require.NoError(t, err)
	require.False(t, success)
	require.False(t, ranDependent)

	webResult := results[statusKey(action.KindDeploy, "web")]
	require.True(t, webResult.Aborted)

	apiResult := results[statusKey(action.KindBuild, "api")]
	require.Error(t, apiResult.Err)
}

func TestRun_ThrowOnErrorCancelsUnrelatedBranch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	specs := []Spec{
		{
			Key: statusKey(action.KindBuild, "bad"),
			Run: func(ctx context.Context) (any, error) {
				return nil, gardenerr.New(gardenerr.KindPlugin, "boom")
			},
		},
		{
			Key: statusKey(action.KindBuild, "slow"),
			Run: func(ctx context.Context) (any, error) {
				close(started)
				select {
				case <-release:
					return "finished", nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
	}

	s := New(Options{ThrowOnError: true, GraceWindow: 200 * time.Millisecond})
	go func() {
		<-started
		close(release)
	}()
	results, success, err := s.Run(context.Background(), specs)

	require.NoError(t, err)
	require.False(t, success)
	slowResult := results[statusKey(action.KindBuild, "slow")]
	require.True(t, slowResult.Value == "finished" || slowResult.Err != nil)
}

func TestRun_ThrowOnErrorFalseLetsUnrelatedBranchComplete(t *testing.T) {
	var completed bool
	specs := []Spec{
		{
			Key: statusKey(action.KindBuild, "bad"),
			Run: func(ctx context.Context) (any, error) {
				return nil, gardenerr.New(gardenerr.KindPlugin, "boom")
			},
		},
		{
			Key: statusKey(action.KindBuild, "good"),
			Run: func(ctx context.Context) (any, error) {
				completed = true
				return "ok", nil
			},
		},
	}

	s := New(Options{ThrowOnError: false})
	results, success, err := s.Run(context.Background(), specs)
	require.NoError(t, err)
	require.False(t, success)
	require.True(t, completed)
	require.Equal(t, "ok", results[statusKey(action.KindBuild, "good")].Value)
}

func TestRun_TransientErrorRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	run := func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return nil, gardenerr.New(gardenerr.KindTransient, "flaky")
		}
		return "ok", nil
	}

	specs := []Spec{{Key: statusKey(action.KindBuild, "flaky"), Run: run}}
	s := New(Options{MaxRetries: 3})
	results, success, err := s.Run(context.Background(), specs)
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	require.Equal(t, "ok", results[statusKey(action.KindBuild, "flaky")].Value)
}

func TestRun_NonTransientErrorNeverRetried(t *testing.T) {
	var attempts int32
	run := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, gardenerr.New(gardenerr.KindPlugin, "not flaky")
	}

	specs := []Spec{{Key: statusKey(action.KindBuild, "api"), Run: run}}
	s := New(Options{MaxRetries: 3})
	_, success, err := s.Run(context.Background(), specs)
	require.NoError(t, err)
	require.False(t, success)
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRun_PriorityOrdersBuildBeforeDeploy(t *testing.T) {
	var order []string
	var mu sync.Mutex

	specs := []Spec{
		{Key: statusKey(action.KindDeploy, "web"), Priority: PriorityDeploy, Run: recordingRun(&order, &mu, "deploy")},
		{Key: statusKey(action.KindRun, "migrate"), Priority: PriorityRunTest, Run: recordingRun(&order, &mu, "run")},
		{Key: statusKey(action.KindBuild, "api"), Priority: PriorityBuild, Run: recordingRun(&order, &mu, "build")},
	}

	s := New(Options{ConcurrencyLimit: 1})
	_, success, err := s.Run(context.Background(), specs)
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, []string{"build", "run", "deploy"}, order)
}

func TestRun_EmitsExpectedEventSequence(t *testing.T) {
	specs := []Spec{
		{Key: statusKey(action.KindBuild, "api"), Run: func(ctx context.Context) (any, error) { return nil, nil }},
	}

	s := New(Options{})
	var kinds []EventKind
	done := make(chan struct{})
	go func() {
		for e := range s.Events() {
			kinds = append(kinds, e.Kind)
		}
		close(done)
	}()

	_, success, err := s.Run(context.Background(), specs)
	<-done
	require.NoError(t, err)
	require.True(t, success)
	require.Equal(t, []EventKind{
		EventTaskPending,
		EventTaskReady,
		EventTaskRunning,
		EventTaskComplete,
		EventGraphComplete,
	}, kinds)
}

func TestRun_UnknownDependencyIsUsageError(t *testing.T) {
	specs := []Spec{
		{
			Key:          statusKey(action.KindDeploy, "web"),
			Dependencies: []task.Key{statusKey(action.KindBuild, "missing")},
			Run:          func(ctx context.Context) (any, error) { return nil, nil },
		},
	}

	s := New(Options{})
	_, _, err := s.Run(context.Background(), specs)
	require.Error(t, err)
	require.Equal(t, gardenerr.KindConfiguration, gardenerr.KindOf(err))
}

func TestRun_DiamondDependencyCompletesOnce(t *testing.T) {
	var counts sync.Map
	mkRun := func(name string) RunFunc {
		return func(ctx context.Context) (any, error) {
			v, _ := counts.LoadOrStore(name, new(int32))
			atomic.AddInt32(v.(*int32), 1)
			return name, nil
		}
	}

	specs := []Spec{
		{Key: statusKey(action.KindBuild, "base"), Run: mkRun("base")},
		{Key: statusKey(action.KindBuild, "left"), Dependencies: []task.Key{statusKey(action.KindBuild, "base")}, Run: mkRun("left")},
		{Key: statusKey(action.KindBuild, "right"), Dependencies: []task.Key{statusKey(action.KindBuild, "base")}, Run: mkRun("right")},
		{
			Key: statusKey(action.KindDeploy, "top"),
			Dependencies: []task.Key{
				statusKey(action.KindBuild, "left"),
				statusKey(action.KindBuild, "right"),
			},
			Run: mkRun("top"),
		},
	}

	s := New(Options{})
	results, success, err := s.Run(context.Background(), specs)
	require.NoError(t, err)
	require.True(t, success)

	for _, name := range []string{"base", "left", "right", "top"} {
		v, ok := counts.Load(name)
		require.True(t, ok, "expected %s to have run", name)
		require.Equal(t, int32(1), atomic.LoadInt32(v.(*int32)), "expected %s to run exactly once", name)
	}
	require.Equal(t, "top", results[statusKey(action.KindDeploy, "top")].Value)
}

func TestRun_TimeoutFailsTaskWithContextError(t *testing.T) {
	specs := []Spec{
		{
			Key:     statusKey(action.KindRun, "slow"),
			Timeout: 10 * time.Millisecond,
			Run: func(ctx context.Context) (any, error) {
				<-ctx.Done()
				return nil, gardenerr.Wrap(gardenerr.KindTimeout, ctx.Err(), "task timed out")
			},
		},
	}

	s := New(Options{MaxRetries: 0})
	_, success, err := s.Run(context.Background(), specs)
	require.NoError(t, err)
	require.False(t, success)
}

func TestRun_NoSpecsSucceedsImmediately(t *testing.T) {
	s := New(Options{})
	results, success, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, success)
	require.Empty(t, results)
}

func TestRun_ManyIndependentTasksAllComplete(t *testing.T) {
	const n = 50
	specs := make([]Spec, n)
	for i := 0; i < n; i++ {
		i := i
		specs[i] = Spec{
			Key: statusKey(action.KindBuild, fmt.Sprintf("svc-%d", i)),
			Run: func(ctx context.Context) (any, error) { return i, nil },
		}
	}

	s := New(Options{ConcurrencyLimit: 8})
	results, success, err := s.Run(context.Background(), specs)
	require.NoError(t, err)
	require.True(t, success)
	require.Len(t, results, n)
}
