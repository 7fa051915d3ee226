package modulestore

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func rawValue(t *testing.T, v any) bson.RawValue {
	t.Helper()
	doc, err := bson.Marshal(bson.M{"blocks": v})
	if err != nil {
		t.Fatal(err)
	}
	var wrapper struct {
		Blocks bson.RawValue `bson:"blocks"`
	}
	if err := bson.Unmarshal(doc, &wrapper); err != nil {
		t.Fatal(err)
	}
	return wrapper.Blocks
}

func TestDecodeBlocksMapLayout(t *testing.T) {
	defID := primitive.NewObjectID()
	raw := rawValue(t, bson.M{
		"course1": bson.M{
			"block_type": "course",
			"fields":     bson.M{"display_name": "Mechanics", "children": bson.A{"html1"}},
		},
		"html1": bson.M{
			"block_type": "html",
			"definition": defID,
		},
	})

	blocks, err := decodeBlocks(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("decoded %d blocks, want 2", len(blocks))
	}
	course := blocks["course1"]
	if course.Type != "course" || course.DisplayName != "Mechanics" {
		t.Fatalf("unexpected course node: %+v", course)
	}
	if len(course.Children) != 1 || course.Children[0] != "html1" {
		t.Fatalf("unexpected children: %v", course.Children)
	}
	html := blocks["html1"]
	if html.DefinitionID != defID.Hex() {
		t.Fatalf("definition id = %q, want %q", html.DefinitionID, defID.Hex())
	}
}

func TestDecodeBlocksArrayLayout(t *testing.T) {
	defID := primitive.NewObjectID()
	raw := rawValue(t, bson.A{
		bson.M{
			"block_id":   "course1",
			"block_type": "course",
			"fields":     bson.M{"children": bson.A{"v1"}},
		},
		bson.M{
			"block_id":   "v1",
			"block_type": "video",
			"definition": defID,
		},
	})

	blocks, err := decodeBlocks(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("decoded %d blocks, want 2", len(blocks))
	}
	if blocks["v1"].Type != "video" || blocks["v1"].DefinitionID != defID.Hex() {
		t.Fatalf("unexpected video node: %+v", blocks["v1"])
	}
}

func TestDecodeBlocksRejectsScalar(t *testing.T) {
	if _, err := decodeBlocks(rawValue(t, "not blocks")); err == nil {
		t.Fatal("expected error for scalar blocks value")
	}
}

func TestToBlockNodeZeroDefinition(t *testing.T) {
	node := toBlockNode("ch1", blockDoc{BlockType: "chapter"})
	if node.DefinitionID != "" {
		t.Fatalf("definition id = %q, want empty for zero ObjectID", node.DefinitionID)
	}
}
