package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// metaUpdatedAt is stripped from documents on read; it exists only for the
// server-side write timestamp.
const metaUpdatedAt = "_updatedAt"

// MongoStore maps each logical collection onto a MongoDB collection, with
// the document id as _id. Merge writes use $set, which gives the same
// top-level field semantics as the SQL backends.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects and pings the deployment.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func decodeDocument(raw bson.M) (json.RawMessage, error) {
	delete(raw, "_id")
	delete(raw, metaUpdatedAt)
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return json.RawMessage(data), nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(raw)
}

func (s *MongoStore) Put(ctx context.Context, collection, id string, data json.RawMessage, merge bool) (time.Time, error) {
	var fields bson.M
	if err := bson.UnmarshalExtJSON(data, false, &fields); err != nil {
		return time.Time{}, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	now := time.Now().UTC()
	fields[metaUpdatedAt] = now

	coll := s.db.Collection(collection)
	var err error
	if merge {
		_, err = coll.UpdateOne(ctx, bson.M{"_id": id},
			bson.M{"$set": fields}, options.UpdateOne().SetUpsert(true))
	} else {
		fields["_id"] = id
		_, err = coll.ReplaceOne(ctx, bson.M{"_id": id},
			fields, options.Replace().SetUpsert(true))
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return now, nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) DeleteAll(ctx context.Context, collection string) error {
	if _, err := s.db.Collection(collection).DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete all %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]json.RawMessage)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		id, _ := raw["_id"].(string)
		if id == "" {
			continue
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		out[id] = doc
	}
	return out, cursor.Err()
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
