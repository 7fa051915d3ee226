package modulestore

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"edurag/internal/domain"
)

const (
	activeVersionsColl = "modulestore.active_versions"
	structuresColl     = "modulestore.structures"
	definitionsColl    = "modulestore.definitions"
)

// MongoStore reads the split document store from MongoDB. Transcripts come
// from the database's GridFS bucket.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	bucket *gridfs.Bucket
}

// MongoConfig configures the MongoDB connection.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// NewMongoStore connects and pings the server. An unreachable store is a
// fatal startup error for callers.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("modulestore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("modulestore: ping %s: %w", cfg.URI, err)
	}
	db := client.Database(cfg.Database)
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("modulestore: gridfs bucket: %w", err)
	}
	return &MongoStore{client: client, db: db, bucket: bucket}, nil
}

type activeVersionDoc struct {
	Org      string                        `bson:"org"`
	Course   string                        `bson:"course"`
	Run      string                        `bson:"run"`
	Versions map[string]primitive.ObjectID `bson:"versions"`
}

type structureDoc struct {
	ID     primitive.ObjectID `bson:"_id"`
	Root   string             `bson:"root,omitempty"`
	Blocks bson.RawValue      `bson:"blocks"`
}

type blockDoc struct {
	BlockID    string             `bson:"block_id,omitempty"`
	BlockType  string             `bson:"block_type"`
	Definition primitive.ObjectID `bson:"definition,omitempty"`
	Fields     blockFields        `bson:"fields,omitempty"`
}

type blockFields struct {
	Children    []string `bson:"children,omitempty"`
	DisplayName string   `bson:"display_name,omitempty"`
}

type definitionDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	BlockType string             `bson:"block_type"`
	Fields    definitionFields   `bson:"fields,omitempty"`
}

type definitionFields struct {
	Data        string            `bson:"data,omitempty"`
	DisplayName string            `bson:"display_name,omitempty"`
	Transcripts map[string]string `bson:"transcripts,omitempty"`
}

func (s *MongoStore) ActiveVersions(ctx context.Context, filter []domain.CourseKey) ([]domain.CourseVersion, error) {
	query := bson.M{}
	if len(filter) > 0 {
		ors := make([]bson.M, 0, len(filter))
		for _, k := range filter {
			ors = append(ors, bson.M{"org": k.Org, "course": k.Course, "run": k.Run})
		}
		query = bson.M{"$or": ors}
	}
	cur, err := s.db.Collection(activeVersionsColl).Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("modulestore: active versions: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.CourseVersion
	for cur.Next(ctx) {
		var doc activeVersionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("modulestore: decode active version: %w", err)
		}
		cv := domain.CourseVersion{
			Key: domain.CourseKey{Org: doc.Org, Course: doc.Course, Run: doc.Run},
		}
		if id, ok := doc.Versions["published-branch"]; ok && !id.IsZero() {
			cv.TreeID = id.Hex()
		}
		out = append(out, cv)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("modulestore: active versions cursor: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Structure(ctx context.Context, treeID string) (*domain.StructureTree, error) {
	oid, err := primitive.ObjectIDFromHex(treeID)
	if err != nil {
		return nil, fmt.Errorf("modulestore: invalid tree id %q: %w", treeID, err)
	}
	var doc structureDoc
	err = s.db.Collection(structuresColl).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("modulestore: structure %s: %w", treeID, err)
	}

	blocks, err := decodeBlocks(doc.Blocks)
	if err != nil {
		return nil, fmt.Errorf("modulestore: structure %s blocks: %w", treeID, err)
	}
	tree := &domain.StructureTree{ID: treeID, Root: doc.Root, Blocks: blocks}
	if tree.Root == "" {
		// Older structure documents carry no explicit root; the course
		// typed block is the declared root by convention.
		for key, b := range blocks {
			if b.Type == "course" {
				tree.Root = key
				break
			}
		}
	}
	return tree, nil
}

// decodeBlocks accepts both storage layouts: a document keyed by block key
// and the older array form where each element names its own block_id.
func decodeBlocks(raw bson.RawValue) (map[string]domain.BlockNode, error) {
	out := map[string]domain.BlockNode{}
	switch raw.Type {
	case bson.TypeEmbeddedDocument:
		var m map[string]blockDoc
		if err := raw.Unmarshal(&m); err != nil {
			return nil, err
		}
		for key, b := range m {
			out[key] = toBlockNode(key, b)
		}
	case bson.TypeArray:
		var list []blockDoc
		if err := raw.Unmarshal(&list); err != nil {
			return nil, err
		}
		for _, b := range list {
			out[b.BlockID] = toBlockNode(b.BlockID, b)
		}
	default:
		return nil, fmt.Errorf("unexpected blocks bson type %s", raw.Type)
	}
	return out, nil
}

func toBlockNode(key string, b blockDoc) domain.BlockNode {
	node := domain.BlockNode{
		Key:         key,
		Type:        b.BlockType,
		DisplayName: b.Fields.DisplayName,
		Children:    b.Fields.Children,
	}
	if !b.Definition.IsZero() {
		node.DefinitionID = b.Definition.Hex()
	}
	return node
}

func (s *MongoStore) Definitions(ctx context.Context, ids []string) (map[string]domain.Definition, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			// Malformed reference; the caller counts it as missing.
			continue
		}
		oids = append(oids, oid)
	}
	out := make(map[string]domain.Definition, len(oids))
	if len(oids) == 0 {
		return out, nil
	}
	cur, err := s.db.Collection(definitionsColl).Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("modulestore: definitions: %w", err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc definitionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("modulestore: decode definition: %w", err)
		}
		id := doc.ID.Hex()
		out[id] = domain.Definition{
			ID:          id,
			Type:        doc.BlockType,
			DisplayName: doc.Fields.DisplayName,
			Data:        doc.Fields.Data,
			Transcripts: doc.Fields.Transcripts,
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("modulestore: definitions cursor: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Transcript(ctx context.Context, filename string) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.bucket.SetReadDeadline(deadline)
	}
	stream, err := s.bucket.OpenDownloadStreamByName(filename)
	if err == gridfs.ErrFileNotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("modulestore: transcript %q: %w", filename, err)
	}
	defer stream.Close()
	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("modulestore: read transcript %q: %w", filename, err)
	}
	return string(data), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
