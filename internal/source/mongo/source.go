// Package mongo replays start documents from a databroker MongoDB
// collection (run_start by default), oldest first.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/brokerdex/internal/source"
)

// DefaultCollection holds run start documents in a databroker database.
const DefaultCollection = "run_start"

// Compile-time check: Source implements source.Opener.
var _ source.Opener = (*Source)(nil)

// Config holds connection parameters.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Source opens sorted cursors over the start-document collection.
type Source struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects and pings the server.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, errors.New("mongo uri and database are required")
	}
	coll := cfg.Collection
	if coll == "" {
		coll = DefaultCollection
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(30 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Source{
		client:     client,
		collection: client.Database(cfg.Database).Collection(coll),
	}, nil
}

// Ping checks connectivity.
func (s *Source) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Source) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Open starts a forward pass over every document ordered by "time".
func (s *Source) Open(ctx context.Context) (source.Iterator, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})
	cur, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", s.collection.Name(), err)
	}
	return &cursorIterator{cur: cur}, nil
}

type cursorIterator struct {
	cur *mongo.Cursor
}

func (it *cursorIterator) Next(ctx context.Context) (map[string]any, error) {
	if !it.cur.Next(ctx) {
		if err := it.cur.Err(); err != nil {
			return nil, fmt.Errorf("cursor: %w", err)
		}
		return nil, io.EOF
	}
	var raw bson.M
	if err := it.cur.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return Normalize(raw), nil
}

func (it *cursorIterator) Close() error {
	return it.cur.Close(context.Background())
}

// Normalize converts BSON-decoded values into plain Go values the
// converters understand: ObjectIDs become hex strings and BSON dates
// become epoch seconds.
func Normalize(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return float64(x) / 1000
	case primitive.Decimal128:
		return x.String()
	case primitive.Timestamp:
		return int64(x.T)
	case primitive.Null, primitive.Undefined:
		return nil
	case bson.M:
		return Normalize(x)
	case bson.D:
		return Normalize(x.Map())
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
