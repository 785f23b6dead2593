// Package solver implements the graph executor. It schedules a DAG of
// tasks in dependency order with a cooperative policy — the solver's own
// state transitions are serialised, but task bodies run concurrently on a
// worker pool via sourcegraph/conc/pool — and implements the full
// per-task state machine, cancellation propagation, transient-error
// retry, and typed lifecycle events.
package solver

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/logger"
	"github.com/garden-io/garden-core/pkg/task"
	"github.com/sourcegraph/conc/pool"
)

var log = logger.New("solver")

// State is a task's position in the per-task state machine.
type State string

const (
	StateNew       State = "new"
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAborted
}

// RunFunc is a task body. It must respect ctx's cancellation signal.
type RunFunc func(ctx context.Context) (any, error)

// Priority buckets order dispatch so build prerequisites surface first:
// Build, then Run/Test, then Deploy. Lower runs first.
const (
	PriorityBuild   = 0
	PriorityRunTest = 1
	PriorityDeploy  = 2
)

// Spec is one schedulable unit handed to the solver.
type Spec struct {
	Key          task.Key
	Dependencies []task.Key
	Priority     int
	Timeout      time.Duration
	Run          RunFunc
}

// Result is a task's final outcome, returned from Run for every Spec.
type Result struct {
	Key     task.Key
	Value   any
	Err     error
	Aborted bool
}

// Options are the solver's global inputs ("Inputs").
type Options struct {
	ThrowOnError     bool
	StatusOnly       bool
	ConcurrencyLimit int
	MaxRetries       int           // default 3
	GraceWindow      time.Duration // default 30s; bounds the wait for cancelled workers to acknowledge
}

func (o Options) withDefaults() Options {
	if o.ConcurrencyLimit <= 0 {
		o.ConcurrencyLimit = max(1, runtime.GOMAXPROCS(0))
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.GraceWindow <= 0 {
		o.GraceWindow = 30 * time.Second
	}
	return o
}

// EventKind enumerates the solver's typed lifecycle events.
type EventKind string

const (
	EventTaskPending   EventKind = "taskPending"
	EventTaskReady     EventKind = "taskReady"
	EventTaskRunning   EventKind = "taskRunning"
	EventTaskComplete  EventKind = "taskComplete"
	EventTaskFailed    EventKind = "taskFailed"
	EventTaskAborted   EventKind = "taskAborted"
	EventGraphComplete EventKind = "graphComplete"
)

type Event struct {
	Kind EventKind
	Key  task.Key
	Err  error
}

type taskState struct {
	spec    Spec
	state   State
	value   any
	err     error
	aborted bool
}

// Solver runs one invocation of the graph executor. It is not reusable
// across invocations — construct a new Solver per Run.
type Solver struct {
	opts   Options
	events chan Event
}

func New(opts Options) *Solver {
	return &Solver{opts: opts.withDefaults(), events: make(chan Event, 256)}
}

// Events returns the lifecycle event stream. It is closed when Run
// returns.
func (s *Solver) Events() <-chan Event { return s.events }

func (s *Solver) emit(e Event) {
	select {
	case s.events <- e:
	default:
		log.Printf("event channel full, dropping %s for %s", e.Kind, e.Key)
	}
}

type completion struct {
	key   task.Key
	value any
	err   error
}

// Run schedules specs to completion. It returns a Result per spec, an
// overall success flag ("no task failed and no task was aborted"), and a
// non-nil error only for a usage error (e.g. a spec depending on an
// unknown key) — task failures are reported through Result, not this
// return value.
func (s *Solver) Run(ctx context.Context, specs []Spec) (map[task.Key]Result, bool, error) {
	defer close(s.events)

	states := make(map[task.Key]*taskState, len(specs))
	order := make([]task.Key, 0, len(specs))
	for _, sp := range specs {
		states[sp.Key] = &taskState{spec: sp, state: StateNew}
		order = append(order, sp.Key)
	}
	for _, sp := range specs {
		for _, dep := range sp.Dependencies {
			if _, ok := states[dep]; !ok {
				return nil, false, gardenerr.Newf(gardenerr.KindConfiguration, "task %s depends on unknown task %s", sp.Key, dep)
			}
		}
	}
	for _, key := range order {
		s.emit(Event{Kind: EventTaskPending, Key: key})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithMaxGoroutines(s.opts.ConcurrencyLimit)
	completions := make(chan completion, len(specs)+1)
	anyFailed := false

tick:
	for {
		cancelled := runCtx.Err() != nil

		for _, key := range order {
			st := states[key]
			if st.state != StateNew {
				continue
			}
			if cancelled {
				markAborted(s, st)
				continue
			}
			ready, depAborted := depsStatus(st.spec.Dependencies, states)
			switch {
			case depAborted:
				markAborted(s, st)
			case ready:
				st.state = StateReady
				s.emit(Event{Kind: EventTaskReady, Key: key})
			}
		}

		if !cancelled {
			for _, key := range readyOrder(order, states) {
				st := states[key]
				st.state = StateRunning
				s.emit(Event{Kind: EventTaskRunning, Key: key})
				spec := st.spec
				p.Go(func() {
					val, err := s.runWithRetry(runCtx, spec)
					completions <- completion{key: spec.Key, value: val, err: err}
				})
			}
		}

		if allTerminal(states) {
			break tick
		}

		select {
		case c := <-completions:
			st := states[c.key]
			if c.err != nil {
				st.state = StateFailed
				st.err = c.err
				anyFailed = true
				s.emit(Event{Kind: EventTaskFailed, Key: c.key, Err: c.err})
				if s.opts.ThrowOnError {
					cancel()
				}
			} else {
				st.state = StateCompleted
				st.value = c.value
				s.emit(Event{Kind: EventTaskComplete, Key: c.key})
			}
		case <-runCtx.Done():
			// Loop back to the top: the NEW -> ABORTED promotion above
			// will catch anything not yet dispatched. RUNNING tasks are
			// left alone here; they report through completions once
			// their own context deadline (derived from runCtx) fires.
		}
	}

	awaitWorkersOrDetach(p, s.opts.GraceWindow)

	results := make(map[task.Key]Result, len(states))
	success := !anyFailed
	for _, key := range order {
		st := states[key]
		results[key] = Result{Key: key, Value: st.value, Err: st.err, Aborted: st.aborted}
		if st.aborted {
			success = false
		}
	}
	s.emit(Event{Kind: EventGraphComplete})
	return results, success, nil
}

func markAborted(s *Solver, st *taskState) {
	st.state = StateAborted
	st.aborted = true
	s.emit(Event{Kind: EventTaskAborted, Key: st.spec.Key})
}

// depsStatus reports whether every dependency of a NEW task has reached a
// terminal state (ready=true, all terminal) and whether any of them
// failed or aborted (depAborted=true).
func depsStatus(deps []task.Key, states map[task.Key]*taskState) (ready bool, depAborted bool) {
	for _, d := range deps {
		dst := states[d]
		if !dst.state.Terminal() {
			return false, false
		}
		if dst.state == StateFailed || dst.state == StateAborted {
			depAborted = true
		}
	}
	return true, depAborted
}

func allTerminal(states map[task.Key]*taskState) bool {
	for _, st := range states {
		if !st.state.Terminal() {
			return false
		}
	}
	return true
}

// readyOrder returns the keys currently READY, sorted by priority
// ascending then by their position in the original input order (a stable
// FIFO-within-priority tiebreak).
func readyOrder(order []task.Key, states map[task.Key]*taskState) []task.Key {
	type entry struct {
		key  task.Key
		prio int
		pos  int
	}
	var entries []entry
	for i, key := range order {
		st := states[key]
		if st.state == StateReady {
			entries = append(entries, entry{key: key, prio: st.spec.Priority, pos: i})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].prio != entries[j].prio {
			return entries[i].prio < entries[j].prio
		}
		return entries[i].pos < entries[j].pos
	})
	out := make([]task.Key, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}

// awaitWorkersOrDetach waits for all dispatched workers to finish, but no
// longer than grace (Options.GraceWindow); a task's own timeout does not
// shorten this wait. Workers that do not return in time are left running in the
// background (detached); the solver itself returns regardless.
func awaitWorkersOrDetach(p *pool.Pool, grace time.Duration) {
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		log.Printf("grace window (%s) elapsed waiting for workers to acknowledge cancellation; detaching", grace)
	}
}
