package storage

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo adapts a MongoDB collection to the Storage contract. Counters use
// FindOneAndUpdate with $inc, which MongoDB applies atomically per
// document. Expiry is a timestamp field checked on read; an expired
// document is reaped when an increment collides with it.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoDoc struct {
	Key       string     `bson:"_id"`
	Value     *string    `bson:"value,omitempty"`
	N         *int64     `bson:"n,omitempty"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// OpenMongo connects with a mongodb:// URL. The database name comes from
// the URL path (default "webguard"); the namespace names the collection.
func OpenMongo(ctx context.Context, url, namespace string) (*Mongo, error) {
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connCtx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(connCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("mongodb ping", err)
	}

	cs, err := connstringDatabase(url)
	if err != nil {
		return nil, err
	}
	return &Mongo{
		client: client,
		coll:   client.Database(cs).Collection(namespace),
	}, nil
}

// live matches documents whose expiry is unset or in the future.
func live(key string) bson.M {
	return bson.M{
		"_id": key,
		"$or": bson.A{
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": time.Now()}},
		},
	}
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, error) {
	var doc mongoDoc
	err := m.coll.FindOne(ctx, live(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("mongodb find", err)
	}
	switch {
	case doc.Value != nil:
		return []byte(*doc.Value), nil
	case doc.N != nil:
		return []byte(strconv.FormatInt(*doc.N, 10)), nil
	default:
		return nil, nil
	}
}

func (m *Mongo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	doc := mongoDoc{Key: key, Value: strPtr(string(value))}
	if ttl > 0 {
		t := time.Now().Add(ttl)
		doc.ExpiresAt = &t
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return unavailable("mongodb set", err)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return unavailable("mongodb delete", err)
	}
	return nil
}

func (m *Mongo) Incr(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	update := bson.M{"$inc": bson.M{"n": amount}}
	if ttl > 0 {
		update["$setOnInsert"] = bson.M{"expires_at": time.Now().Add(ttl)}
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	for attempt := 0; ; attempt++ {
		var doc mongoDoc
		err := m.coll.FindOneAndUpdate(ctx, live(key), update, opts).Decode(&doc)
		if err == nil {
			if doc.N == nil {
				return 0, errNotCounter(key)
			}
			return *doc.N, nil
		}
		// An expired document blocks the upsert with a duplicate _id.
		// Reap it and retry once.
		if mongo.IsDuplicateKeyError(err) && attempt == 0 {
			if _, derr := m.coll.DeleteOne(ctx, bson.M{
				"_id":        key,
				"expires_at": bson.M{"$lte": time.Now()},
			}); derr != nil {
				return 0, unavailable("mongodb reap", derr)
			}
			continue
		}
		return 0, unavailable("mongodb incr", err)
	}
}

func (m *Mongo) Exists(ctx context.Context, key string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, live(key))
	if err != nil {
		return false, unavailable("mongodb count", err)
	}
	return n > 0, nil
}

func (m *Mongo) Clear(ctx context.Context) error {
	if _, err := m.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return unavailable("mongodb clear", err)
	}
	return nil
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

func strPtr(s string) *string { return &s }

// connstringDatabase extracts the database name from a mongodb URL path,
// defaulting to "webguard".
func connstringDatabase(raw string) (string, error) {
	u, err := neturl.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing mongodb url: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		db = "webguard"
	}
	return db, nil
}
