package sink

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/fabrica/fabrica/internal/generate"
	"github.com/fabrica/fabrica/internal/schema"
)

// Mongo inserts generated rows into MongoDB, one collection per entity.
type Mongo struct {
	ConnectionString string
	Database         string

	client *mongo.Client
}

// Connect opens and pings the client.
func (s *Mongo) Connect(ctx context.Context) error {
	opts := options.Client().ApplyURI(s.ConnectionString)
	client, err := mongo.Connect(opts)
	if err != nil {
		return fmt.Errorf("connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("pinging MongoDB: %w", err)
	}
	s.client = client
	return nil
}

// Close disconnects the client.
func (s *Mongo) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	return err
}

func (s *Mongo) Write(ctx context.Context, set *schema.Set, ds *generate.Dataset) error {
	if s.client == nil {
		return fmt.Errorf("not connected; call Connect first")
	}

	db := s.client.Database(s.Database)
	for _, name := range ds.Entities() {
		e, ok := set.Get(name)
		if !ok {
			return fmt.Errorf("dataset contains unknown entity %q", name)
		}
		docs := documentsFor(e, ds.Rows(name))
		if len(docs) == 0 {
			continue
		}
		if _, err := db.Collection(name).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("inserting into %s: %w", name, err)
		}
	}
	return nil
}

// documentsFor converts rows to BSON documents, fields in declaration order.
func documentsFor(e *schema.EntitySchema, rows []generate.Row) []any {
	fields := e.FieldNames()
	docs := make([]any, 0, len(rows))
	for _, row := range rows {
		doc := make(bson.D, 0, len(fields))
		for _, field := range fields {
			doc = append(doc, bson.E{Key: field, Value: row[field]})
		}
		docs = append(docs, doc)
	}
	return docs
}
