package tasktree

import (
	"fmt"
	"strings"

	"github.com/BaSui01/crewflow/types"
)

// statusGlyph is the single-character marker used in the ASCII view.
func statusGlyph(s types.TaskStatus) string {
	switch s {
	case types.TaskComplete:
		return "x"
	case types.TaskRunning:
		return "~"
	case types.TaskError:
		return "!"
	case types.TaskBlocked:
		return "#"
	default:
		return " "
	}
}

// ASCII renders the tree for terminal display. Dependencies are listed
// inline since they cross the hierarchy and cannot be drawn as branches.
func (t *Tree) ASCII() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%.0f%%)\n", t.root.Description, t.root.Progress()*100)
	writeChildren(&b, t.root, "")
	return b.String()
}

func writeChildren(b *strings.Builder, n *Node, prefix string) {
	for i, c := range n.children {
		branch, childPrefix := "|-- ", prefix+"|   "
		if i == len(n.children)-1 {
			branch, childPrefix = "`-- ", prefix+"    "
		}
		fmt.Fprintf(b, "%s%s[%s] %s", prefix, branch, statusGlyph(c.Status), c.Description)
		if c.Agent != "" {
			fmt.Fprintf(b, " (%s)", c.Agent)
		}
		if len(c.Dependencies) > 0 {
			fmt.Fprintf(b, " after %s", strings.Join(c.Dependencies, ", "))
		}
		b.WriteByte('\n')
		writeChildren(b, c, childPrefix)
	}
}

func dotColor(s types.TaskStatus) string {
	switch s {
	case types.TaskComplete:
		return "palegreen"
	case types.TaskRunning:
		return "lightblue"
	case types.TaskError:
		return "lightcoral"
	case types.TaskBlocked:
		return "lightgray"
	default:
		return "white"
	}
}

// DOT renders the tree in Graphviz format. Ownership edges are solid,
// dependency edges dashed.
func (t *Tree) DOT() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder
	b.WriteString("digraph tasktree {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, style=filled];\n")

	var walk func(n *Node)
	walk = func(n *Node) {
		label := n.Description
		if n.Agent != "" {
			label += "\\n" + n.Agent
		}
		fmt.Fprintf(&b, "  %q [label=%q, fillcolor=%q];\n", n.ID, label, dotColor(n.Status))
		for _, c := range n.children {
			fmt.Fprintf(&b, "  %q -> %q;\n", n.ID, c.ID)
			walk(c)
		}
	}
	walk(t.root)

	var deps func(n *Node)
	deps = func(n *Node) {
		for _, dep := range n.Dependencies {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed];\n", dep, n.ID)
		}
		for _, c := range n.children {
			deps(c)
		}
	}
	deps(t.root)

	b.WriteString("}\n")
	return b.String()
}
