// Package mount implements the `mount` command's backing logic: evaluating
// a §6 tag-query against a Store and materializing its hierarchy as a
// read-only directory tree, kept live by watching the underlying store's
// on-disk files with fsnotify (§11/§12).
//
// Materialize builds the tree once; Mounter wraps it with a filesystem
// Render and an fsnotify-driven Watch loop that re-renders on change.
package mount

import (
	"context"
	"sort"

	"github.com/xunhq/xun/core/callnode"
	"github.com/xunhq/xun/core/store"
	"github.com/xunhq/xun/core/tagquery"
	"github.com/xunhq/xun/core/xerrors"
)

// Node is one level of a materialized tag-query tree. A leaf node (built
// from the grammar's `...`) carries the matching CallNodes directly; a
// branch node carries one child per branch name in the query's hierarchy,
// each of which in turn has one child per distinct value that tag takes
// among the nodes reaching it.
type Node struct {
	Name     string
	Keys     []callnode.CallNode
	Children []*Node
}

// Materialize evaluates q against st and builds the resulting tree: first
// filtering st's keys by q's tag predicates, then grouping the survivors
// according to q's hierarchy.
func Materialize(ctx context.Context, st store.Store, q tagquery.Query) (*Node, error) {
	candidates, err := filterByTags(ctx, st, q.Tags)
	if err != nil {
		return nil, err
	}
	tagsOf := make(map[string]map[string]string, len(candidates))
	for _, c := range candidates {
		tags, err := st.Tags(ctx, c)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.ExecutionError, err, "loading tags for %s", c)
		}
		tagsOf[c.Hash().String()] = tags
	}
	return buildTree(candidates, tagsOf, q.Hierarchy), nil
}

// filterByTags resolves q's tag predicates against st: value-constrained
// tags (`name=OP"value"`) go through Store.Query directly; bare presence
// tags (`name` with no operator) have no Condition equivalent, so
// candidates are fetched unconstrained by them and then filtered in this
// package by checking the tag is merely present.
func filterByTags(ctx context.Context, st store.Store, tags []tagquery.Tag) ([]callnode.CallNode, error) {
	var conditions []store.Condition
	var presenceOnly []string
	for _, t := range tags {
		if t.Op == tagquery.OpNone {
			presenceOnly = append(presenceOnly, t.Name)
			continue
		}
		conditions = append(conditions, store.Condition{Tag: t.Name, Op: store.Op(t.Op), Value: t.Value})
	}

	candidates, err := st.Query(ctx, conditions)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ExecutionError, err, "querying store for mount tree")
	}
	if len(presenceOnly) == 0 {
		return candidates, nil
	}

	var filtered []callnode.CallNode
	for _, c := range candidates {
		nodeTags, err := st.Tags(ctx, c)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.ExecutionError, err, "loading tags for %s", c)
		}
		ok := true
		for _, name := range presenceOnly {
			if _, present := nodeTags[name]; !present {
				ok = false
				break
			}
		}
		if ok {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func buildTree(nodes []callnode.CallNode, tagsOf map[string]map[string]string, h tagquery.Hierarchy) *Node {
	if h.Leaf {
		return &Node{Keys: nodes}
	}

	root := &Node{}
	for _, branch := range h.Branches {
		groups := groupByTag(nodes, tagsOf, branch.Name)
		branchNode := &Node{Name: branch.Name}
		for _, value := range sortedGroupKeys(groups) {
			child := buildTree(groups[value], tagsOf, branch.Child)
			child.Name = value
			branchNode.Children = append(branchNode.Children, child)
		}
		root.Children = append(root.Children, branchNode)
	}
	return root
}

func groupByTag(nodes []callnode.CallNode, tagsOf map[string]map[string]string, tagName string) map[string][]callnode.CallNode {
	groups := map[string][]callnode.CallNode{}
	for _, n := range nodes {
		value, present := tagsOf[n.Hash().String()][tagName]
		if !present {
			continue
		}
		groups[value] = append(groups[value], n)
	}
	return groups
}

func sortedGroupKeys(groups map[string][]callnode.CallNode) []string {
	out := make([]string, 0, len(groups))
	for k := range groups {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
