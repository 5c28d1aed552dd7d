package run

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/BaSui01/crewflow/types"
)

// spanExecutor records a start/end span per prompt so tests can check
// ordering across concurrent dispatch.
type spanExecutor struct {
	mu     sync.Mutex
	starts map[string]time.Time
	ends   map[string]time.Time
}

func newSpanExecutor() *spanExecutor {
	return &spanExecutor{starts: make(map[string]time.Time), ends: make(map[string]time.Time)}
}

func (e *spanExecutor) Execute(ctx context.Context, agentName, prompt string) (string, error) {
	e.mu.Lock()
	e.starts[prompt] = time.Now()
	e.mu.Unlock()
	time.Sleep(time.Millisecond)
	e.mu.Lock()
	e.ends[prompt] = time.Now()
	e.mu.Unlock()
	return "ok", nil
}

// randomDAG builds an acyclic task list: each task may only depend on tasks
// with a smaller index, so topological order always exists.
func randomDAG(rng *rand.Rand, n int, agents []string) []*types.Task {
	tasks := make([]*types.Task, 0, n)
	for i := 0; i < n; i++ {
		var deps []string
		for j := 0; j < i; j++ {
			if rng.Intn(3) == 0 {
				deps = append(deps, fmt.Sprintf("%d", j))
			}
		}
		tasks = append(tasks, types.NewTask(
			fmt.Sprintf("%d", i),
			agents[rng.Intn(len(agents))],
			fmt.Sprintf("task-%d", i),
			deps,
		))
	}
	return tasks
}

func TestProperty_SchedulerTopologicalOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	roster := testRoster(t)
	agents := []string{"felix", "nova", "sol"}

	properties.Property("every dependency finishes before its dependent starts", prop.ForAll(
		func(n int, seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			tasks := randomDAG(rng, n, agents)

			exec := newSpanExecutor()
			rc := fastRecoveryConfig()
			rc.MaxRetries = 1
			recoverer := NewRecoverer(rc, roster, exec, fastTimeout(), nil)
			s := NewRoundScheduler(SchedulerConfig{MaxRounds: n + 1}, recoverer, roster, nil, nil, nil)

			s.Execute(context.Background(), tasks)

			byID := make(map[string]*types.Task, len(tasks))
			for _, task := range tasks {
				if task.Status != types.TaskComplete {
					t.Logf("task %s ended %s (%s)", task.ID, task.Status, task.BlockReason)
					return false
				}
				byID[task.ID] = task
			}

			exec.mu.Lock()
			defer exec.mu.Unlock()
			for _, task := range tasks {
				for _, dep := range task.Dependencies {
					depEnd := exec.ends[byID[dep].Description]
					start := exec.starts[task.Description]
					if !depEnd.Before(start) && !depEnd.Equal(start) {
						t.Logf("dep %s finished at %v, after %s started at %v",
							dep, depEnd, task.ID, start)
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
