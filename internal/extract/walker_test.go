package extract

import (
	"testing"

	"edurag/internal/domain"
)

func buildTree(root string, nodes ...domain.BlockNode) *domain.StructureTree {
	blocks := make(map[string]domain.BlockNode, len(nodes))
	for _, n := range nodes {
		blocks[n.Key] = n
	}
	return &domain.StructureTree{ID: "tree1", Root: root, Blocks: blocks}
}

func leafKeys(tree *domain.StructureTree, c *Counters) []string {
	var keys []string
	Walk(tree, c, func(l Leaf) {
		keys = append(keys, l.Node.Key)
	})
	return keys
}

func TestWalkDocumentOrder(t *testing.T) {
	tree := buildTree("course1",
		domain.BlockNode{Key: "course1", Type: "course", Children: []string{"ch1", "ch2"}},
		domain.BlockNode{Key: "ch1", Type: "chapter", Children: []string{"seq1"}},
		domain.BlockNode{Key: "seq1", Type: "sequential", Children: []string{"vert1"}},
		domain.BlockNode{Key: "vert1", Type: "vertical", Children: []string{"html1", "vid1"}},
		domain.BlockNode{Key: "html1", Type: "html", DefinitionID: "d1"},
		domain.BlockNode{Key: "vid1", Type: "video", DefinitionID: "d2"},
		domain.BlockNode{Key: "ch2", Type: "chapter", Children: []string{"seq2"}},
		domain.BlockNode{Key: "seq2", Type: "sequential", Children: []string{"prob1"}},
		domain.BlockNode{Key: "prob1", Type: "problem", DefinitionID: "d3"},
	)

	c := &Counters{}
	got := leafKeys(tree, c)
	want := []string{"html1", "vid1", "prob1"}
	if len(got) != len(want) {
		t.Fatalf("walked %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("walked %v, want %v", got, want)
		}
	}
	if n := c.SkippedChildren.Load(); n != 0 {
		t.Fatalf("skipped children = %d, want 0", n)
	}
}

func TestWalkIgnoresUnreachableBlocks(t *testing.T) {
	tree := buildTree("course1",
		domain.BlockNode{Key: "course1", Type: "course", Children: []string{"html1"}},
		domain.BlockNode{Key: "html1", Type: "html", DefinitionID: "d1"},
		// Present in the node set but not referenced by any child list.
		domain.BlockNode{Key: "orphan", Type: "html", DefinitionID: "d9"},
	)

	got := leafKeys(tree, &Counters{})
	if len(got) != 1 || got[0] != "html1" {
		t.Fatalf("walked %v, want [html1]", got)
	}
}

func TestWalkCountsMissingChildren(t *testing.T) {
	tree := buildTree("course1",
		domain.BlockNode{Key: "course1", Type: "course", Children: []string{"ch1", "gone"}},
		domain.BlockNode{Key: "ch1", Type: "chapter", Children: []string{"html1", "also-gone"}},
		domain.BlockNode{Key: "html1", Type: "html", DefinitionID: "d1"},
	)

	c := &Counters{}
	got := leafKeys(tree, c)
	if len(got) != 1 || got[0] != "html1" {
		t.Fatalf("walked %v, want [html1]", got)
	}
	if n := c.SkippedChildren.Load(); n != 2 {
		t.Fatalf("skipped children = %d, want 2", n)
	}
}

func TestWalkMissingRoot(t *testing.T) {
	tree := buildTree("nope",
		domain.BlockNode{Key: "html1", Type: "html", DefinitionID: "d1"},
	)
	if got := leafKeys(tree, &Counters{}); got != nil {
		t.Fatalf("walked %v, want nothing", got)
	}
}

func TestWalkSurvivesCycle(t *testing.T) {
	tree := buildTree("course1",
		domain.BlockNode{Key: "course1", Type: "course", Children: []string{"ch1"}},
		domain.BlockNode{Key: "ch1", Type: "chapter", Children: []string{"html1", "ch1"}},
		domain.BlockNode{Key: "html1", Type: "html", DefinitionID: "d1"},
	)
	got := leafKeys(tree, &Counters{})
	if len(got) != 1 || got[0] != "html1" {
		t.Fatalf("walked %v, want [html1]", got)
	}
}

func TestWalkLeafPaths(t *testing.T) {
	tree := buildTree("course1",
		domain.BlockNode{Key: "course1", Type: "course", DisplayName: "Mechanics", Children: []string{"ch1"}},
		domain.BlockNode{Key: "ch1", Type: "chapter", DisplayName: "Week 1", Children: []string{"seq1"}},
		domain.BlockNode{Key: "seq1", Type: "sequential", DisplayName: "Intro", Children: []string{"html1"}},
		domain.BlockNode{Key: "html1", Type: "html", DefinitionID: "d1"},
	)

	var leaves []Leaf
	Walk(tree, &Counters{}, func(l Leaf) { leaves = append(leaves, l) })
	if len(leaves) != 1 {
		t.Fatalf("got %d leaves, want 1", len(leaves))
	}
	path := leaves[0].Path
	if len(path) != 3 {
		t.Fatalf("path has %d ancestors, want 3", len(path))
	}
	wantNames := []string{"Mechanics", "Week 1", "Intro"}
	for i, want := range wantNames {
		if path[i].DisplayName != want {
			t.Fatalf("ancestor %d = %q, want %q", i, path[i].DisplayName, want)
		}
	}
}
