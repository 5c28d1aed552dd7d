package tasktree

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/BaSui01/crewflow/types"
)

// rootID is the synthetic root. It never executes and never appears in the
// ready set.
const rootID = "root"

// Node is one unit of work in the tree. It carries the same lifecycle as a
// flat task plus hierarchy: a parent, owned children, and a scheduling
// priority. Dependencies cross-reference sibling or cousin nodes by id; they
// are not an ownership relation.
type Node struct {
	types.Task

	Priority int    `json:"priority"`
	ParentID string `json:"parent_id,omitempty"`

	children []*Node
}

// Children returns the owned child nodes in insertion order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Progress is the derived completion fraction. A leaf is 1.0 iff complete,
// otherwise 0.0. An internal node is the unweighted mean of its children,
// so a parent of two subtrees counts each half regardless of subtree size.
func (n *Node) Progress() float64 {
	if len(n.children) == 0 {
		if n.Status == types.TaskComplete {
			return 1.0
		}
		return 0.0
	}
	sum := 0.0
	for _, c := range n.children {
		sum += c.Progress()
	}
	return sum / float64(len(n.children))
}

// Tree holds the full hierarchy plus a flat id index for dependency lookup.
// Safe for concurrent use; the runner dispatches ready nodes in parallel.
type Tree struct {
	mu        sync.RWMutex
	root      *Node
	nodes     map[string]*Node
	completed map[string]bool
}

// NewTree creates an empty tree. The root describes the overall goal and is
// bookkeeping only.
func NewTree(goal string) *Tree {
	root := &Node{Task: types.Task{
		ID:          rootID,
		Description: goal,
		Status:      types.TaskPending,
	}}
	return &Tree{
		root:      root,
		nodes:     map[string]*Node{rootID: root},
		completed: make(map[string]bool),
	}
}

// Root returns the synthetic root node.
func (t *Tree) Root() *Node {
	return t.root
}

// AddTask creates a node under parent (the root when parent is nil) with the
// given dependencies. Dependencies must already be in this tree.
func (t *Tree) AddTask(description, agentName string, parent *Node, dependsOn []*Node, priority int) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if parent == nil {
		parent = t.root
	}
	if _, ok := t.nodes[parent.ID]; !ok {
		return nil, fmt.Errorf("parent %s is not in this tree", parent.ID)
	}

	deps := make([]string, 0, len(dependsOn))
	for _, d := range dependsOn {
		if _, ok := t.nodes[d.ID]; !ok {
			return nil, fmt.Errorf("dependency %s is not in this tree", d.ID)
		}
		deps = append(deps, d.ID)
	}

	n := &Node{
		Task: types.Task{
			ID:           uuid.NewString(),
			Agent:        agentName,
			Description:  description,
			Dependencies: deps,
			Status:       types.TaskPending,
		},
		Priority: priority,
		ParentID: parent.ID,
	}
	parent.children = append(parent.children, n)
	t.nodes[n.ID] = n
	return n, nil
}

// Get returns the node with the given id.
func (t *Tree) Get(id string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	return n, ok
}

// GetReadyTasks returns pending nodes whose dependencies are all complete,
// highest priority first. The root is excluded.
func (t *Tree) GetReadyTasks() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ready []*Node
	for _, n := range t.nodes {
		if n.ID == rootID || n.Status != types.TaskPending {
			continue
		}
		ok := true
		for _, dep := range n.Dependencies {
			if !t.completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, n)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].ID < ready[j].ID
	})
	return ready
}

// MarkRunning transitions a node to running.
func (t *Tree) MarkRunning(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("no such node: %s", id)
	}
	return n.MarkRunning()
}

// MarkComplete records a result and adds the node to the completed set that
// gates GetReadyTasks.
func (t *Tree) MarkComplete(id, result string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("no such node: %s", id)
	}
	if err := n.MarkComplete(result); err != nil {
		return err
	}
	t.completed[id] = true
	return nil
}

// MarkFailed records an error. The node never enters the completed set, so
// its dependents stay unready.
func (t *Tree) MarkFailed(id, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("no such node: %s", id)
	}
	return n.MarkError(errMsg)
}

// Progress is the root's derived completion fraction. An empty tree is 0.
func (t *Tree) Progress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.root.children) == 0 {
		return 0.0
	}
	return t.root.Progress()
}

// Len is the number of nodes excluding the root.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes) - 1
}

// FromPlan builds a single-level tree from a flat plan: every task becomes a
// child of the root, keeping its id, agent and dependencies. This lets the
// tree runner execute planner output directly.
func FromPlan(goal string, tasks []*types.Task) (*Tree, error) {
	t := NewTree(goal)
	for _, src := range tasks {
		if src.ID == rootID {
			return nil, fmt.Errorf("task id %q is reserved", rootID)
		}
		if _, dup := t.nodes[src.ID]; dup {
			return nil, fmt.Errorf("duplicate task id: %s", src.ID)
		}
		n := &Node{
			Task: types.Task{
				ID:           src.ID,
				Agent:        src.Agent,
				Description:  src.Description,
				Dependencies: append([]string(nil), src.Dependencies...),
				Status:       types.TaskPending,
			},
			ParentID: rootID,
		}
		t.root.children = append(t.root.children, n)
		t.nodes[n.ID] = n
	}
	return t, nil
}
