package extract

import "edurag/internal/domain"

// Container block types carry no directly extractable content; their
// children are descended into instead. Anything else reached by the walk
// is yielded as a leaf.
var containerTypes = map[string]struct{}{
	"course": {}, "chapter": {}, "sequential": {}, "vertical": {},
	"library_content": {}, "split_test": {}, "conditional": {},
}

// Leaf is a walked content node together with its ancestor chain, root
// first, used downstream for citation paths.
type Leaf struct {
	Node domain.BlockNode
	Path []domain.BlockNode
}

// Walk traverses the tree depth-first from its declared root and calls
// visit for every reachable leaf in document order. Inclusion is defined
// by reachability: blocks present in the node set but not reachable from
// the root are ignored. A child key absent from the node set skips that
// branch and increments the skipped-children counter.
func Walk(tree *domain.StructureTree, c *Counters, visit func(Leaf)) {
	if tree == nil || tree.Root == "" {
		return
	}
	root, ok := tree.Blocks[tree.Root]
	if !ok {
		return
	}
	seen := map[string]struct{}{tree.Root: {}}
	walk(tree, root, nil, seen, c, visit)
}

func walk(tree *domain.StructureTree, node domain.BlockNode, path []domain.BlockNode, seen map[string]struct{}, c *Counters, visit func(Leaf)) {
	if !isContainer(node.Type) {
		visit(Leaf{Node: node, Path: append([]domain.BlockNode(nil), path...)})
		return
	}
	childPath := append(path, node)
	for _, key := range node.Children {
		child, ok := tree.Blocks[key]
		if !ok {
			c.SkippedChildren.Add(1)
			continue
		}
		// The tree is expected to be acyclic; refuse to revisit anyway so
		// a corrupt structure cannot hang the walk.
		if _, visited := seen[key]; visited {
			continue
		}
		seen[key] = struct{}{}
		walk(tree, child, childPath, seen, c, visit)
	}
}

func isContainer(blockType string) bool {
	_, ok := containerTypes[blockType]
	return ok
}
