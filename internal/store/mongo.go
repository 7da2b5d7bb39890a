package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongodb field names reserved by the adapter
const (
	mongoIDField     = "_id"
	mongoParentField = "_parent"
)

const mongoPollInterval = 2 * time.Second

// MongoStore maps collection paths onto MongoDB collections. A nested path
// such as "chats/abc/messages" is stored in the "messages" collection with a
// "_parent" field of "chats/abc". Batches run inside a multi-document
// transaction, which needs a replica set deployment.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

// ConnectMongo opens a client for uri and verifies the connection.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &Error{Op: "connect", Err: errors.WithStack(err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &Error{Op: "ping", Err: errors.WithStack(err)}
	}
	return NewMongoStore(client, database), nil
}

func (s *MongoStore) NewID(string) string {
	return primitive.NewObjectID().Hex()
}

func (s *MongoStore) collection(path string) (*mongo.Collection, string) {
	parts := strings.Split(path, "/")
	name := parts[len(parts)-1]
	parent := strings.Join(parts[:len(parts)-1], "/")
	return s.db.Collection(name), parent
}

func (s *MongoStore) idFilter(path, id string) (*mongo.Collection, bson.D) {
	coll, parent := s.collection(path)
	filter := bson.D{{Key: mongoIDField, Value: id}}
	if parent != "" {
		filter = append(filter, bson.E{Key: mongoParentField, Value: parent})
	}
	return coll, filter
}

func (s *MongoStore) document(path, id string, data map[string]interface{}) bson.M {
	_, parent := s.collection(path)
	doc := bson.M{}
	for k, v := range normalizeMap(data) {
		doc[k] = v
	}
	doc[mongoIDField] = id
	if parent != "" {
		doc[mongoParentField] = parent
	}
	return doc
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	coll, filter := s.idFilter(collection, id)
	var raw bson.M
	if err := coll.FindOne(ctx, filter).Decode(&raw); err != nil {
		return nil, mongoError("get "+collection, err)
	}
	return mongoDocument(raw), nil
}

func (s *MongoStore) Create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	return s.create(ctx, collection, id, data)
}

func (s *MongoStore) create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	coll, _ := s.collection(collection)
	_, err := coll.InsertOne(ctx, s.document(collection, id, data))
	return mongoError("create "+collection, err)
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	return s.set(ctx, collection, id, data)
}

func (s *MongoStore) set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	coll, filter := s.idFilter(collection, id)
	_, err := coll.ReplaceOne(ctx, filter, s.document(collection, id, data), options.Replace().SetUpsert(true))
	return mongoError("set "+collection, err)
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, updates ...Update) error {
	return s.update(ctx, collection, id, updates)
}

func (s *MongoStore) update(ctx context.Context, collection, id string, updates []Update) error {
	coll, filter := s.idFilter(collection, id)
	set := bson.D{}
	for _, u := range updates {
		set = append(set, bson.E{Key: u.Path, Value: normalize(u.Value)})
	}
	res, err := coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return mongoError("update "+collection, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	return s.delete(ctx, collection, id)
}

func (s *MongoStore) delete(ctx context.Context, collection, id string) error {
	coll, filter := s.idFilter(collection, id)
	_, err := coll.DeleteOne(ctx, filter)
	return mongoError("delete "+collection, err)
}

func (s *MongoStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	coll, parent := s.collection(q.Collection)

	// equality on an array field matches when the array contains the value,
	// so both operators share one filter form
	filter := bson.D{}
	if parent != "" {
		filter = append(filter, bson.E{Key: mongoParentField, Value: parent})
	}
	for _, f := range q.Filters {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Direction == Desc {
			dir = -1
		}
		filter = append(filter, bson.E{Key: q.OrderBy, Value: bson.D{{Key: "$exists", Value: true}}})
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: mongoIDField, Value: 1}})
	} else {
		opts.SetSort(bson.D{{Key: mongoIDField, Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoError("query "+q.Collection, err)
	}
	defer cursor.Close(ctx)

	docs := make([]*Document, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, mongoError("query "+q.Collection, err)
		}
		docs = append(docs, mongoDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, mongoError("query "+q.Collection, err)
	}
	return docs, nil
}

// Watch re-runs the query whenever the collection's change stream reports a
// write and diffs the result. Deployments without change streams fall back
// to polling.
func (s *MongoStore) Watch(ctx context.Context, q Query) (*Subscription, error) {
	docs, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	sub := newSubscription(ctx)
	changes, last := diffDocuments(nil, docs)
	sub.push(Snapshot{Docs: docs, Changes: changes})

	refresh := func() bool {
		next, err := s.Query(sub.ctx, q)
		if err != nil {
			if sub.ctx.Err() == nil {
				sub.fail(err)
			}
			return false
		}
		var changes []Change
		changes, last = diffDocuments(last, next)
		if len(changes) > 0 {
			sub.push(Snapshot{Docs: next, Changes: changes})
		}
		return true
	}

	coll, _ := s.collection(q.Collection)
	go func() {
		stream, err := coll.Watch(sub.ctx, mongo.Pipeline{})
		if err != nil {
			ticker := time.NewTicker(mongoPollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-sub.ctx.Done():
					return
				case <-ticker.C:
					if !refresh() {
						return
					}
				}
			}
		}

		defer stream.Close(context.Background())
		for stream.Next(sub.ctx) {
			if !refresh() {
				return
			}
		}
		if err := stream.Err(); err != nil && sub.ctx.Err() == nil {
			sub.fail(mongoError("watch "+q.Collection, err))
		}
	}()
	go sub.run(nil)

	return sub, nil
}

func (s *MongoStore) Batch() Batch {
	return &mongoBatch{store: s}
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

type mongoBatch struct {
	store  *MongoStore
	writes []memoryWrite
}

func (b *mongoBatch) Create(collection, id string, data map[string]interface{}) {
	b.writes = append(b.writes, memoryWrite{kind: writeCreate, collection: collection, id: id, data: data})
}

func (b *mongoBatch) Set(collection, id string, data map[string]interface{}) {
	b.writes = append(b.writes, memoryWrite{kind: writeSet, collection: collection, id: id, data: data})
}

func (b *mongoBatch) Update(collection, id string, updates ...Update) {
	b.writes = append(b.writes, memoryWrite{kind: writeUpdate, collection: collection, id: id, updates: updates})
}

func (b *mongoBatch) Delete(collection, id string) {
	b.writes = append(b.writes, memoryWrite{kind: writeDelete, collection: collection, id: id})
}

func (b *mongoBatch) Len() int {
	return len(b.writes)
}

func (b *mongoBatch) Commit(ctx context.Context) error {
	if len(b.writes) == 0 {
		return nil
	}

	session, err := b.store.client.StartSession()
	if err != nil {
		return mongoError("commit", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, w := range b.writes {
			var err error
			switch w.kind {
			case writeCreate:
				err = b.store.create(sc, w.collection, w.id, w.data)
			case writeSet:
				err = b.store.set(sc, w.collection, w.id, w.data)
			case writeUpdate:
				err = b.store.update(sc, w.collection, w.id, w.updates)
			case writeDelete:
				err = b.store.delete(sc, w.collection, w.id)
			}
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		if IsNotFound(err) || IsAlreadyExists(err) {
			return err
		}
		return mongoError("commit", err)
	}
	return nil
}

func mongoDocument(raw bson.M) *Document {
	id, _ := raw[mongoIDField].(string)
	data := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k == mongoIDField || k == mongoParentField {
			continue
		}
		data[k] = fromBSON(v)
	}
	return &Document{ID: id, Data: data}
}

func fromBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, x := range t {
			out[k] = fromBSON(x)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, x := range t {
			out[i] = fromBSON(x)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return int64(t)
	}
	return normalize(v)
}

func mongoError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrAlreadyExists
	}
	return &Error{Op: op, Err: errors.WithStack(err)}
}
