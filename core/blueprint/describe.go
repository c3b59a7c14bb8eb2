package blueprint

import (
	"fmt"
	"sort"
	"strings"
)

// Describe returns a human-readable summary of a Blueprint: how many
// functions and nodes it contains and which root it was planned for. It
// backs `xun graph --format=text` and lets tests assert planner output
// shape without a golden DAG file.
func (b *Blueprint) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "root: %s\n", b.Root.String())
	fmt.Fprintf(&sb, "functions: %d\n", len(b.Functions))
	fmt.Fprintf(&sb, "nodes: %d\n", len(b.Nodes))

	names := make([]string, 0, len(b.Functions))
	for name := range b.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fi := b.Functions[name]
		fmt.Fprintf(&sb, "  %s %s\n", name, fi.FunctionHash)
	}
	return sb.String()
}

// DOT renders the Blueprint's DAG as Graphviz DOT, one node per CallNode
// labeled with its function name and a short hash prefix, one edge per
// dependency (§12's supplemented introspection tooling).
func (b *Blueprint) DOT() string {
	var sb strings.Builder
	sb.WriteString("digraph blueprint {\n")

	hashes := make([]string, 0, len(b.Nodes))
	for h := range b.Nodes {
		hashes = append(hashes, h.String())
	}
	sort.Strings(hashes)

	byString := make(map[string]string, len(b.Nodes))
	for h, node := range b.Nodes {
		byString[h.String()] = node.FunctionName()
	}

	for _, hs := range hashes {
		fmt.Fprintf(&sb, "  %q [label=%q];\n", hs, fmt.Sprintf("%s (%s)", byString[hs], shortHash(hs)))
	}
	for from, children := range b.Edges {
		fromStr := from.String()
		childStrs := make([]string, len(children))
		for i, c := range children {
			childStrs[i] = c.String()
		}
		sort.Strings(childStrs)
		for _, to := range childStrs {
			fmt.Fprintf(&sb, "  %q -> %q;\n", fromStr, to)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func shortHash(h string) string {
	if len(h) <= 8 {
		return h
	}
	return h[:8]
}
