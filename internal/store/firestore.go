package store

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore rejects batches with more writes than this.
const firestoreMaxBatchWrites = 500

type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) NewID(collection string) string {
	return s.client.Collection(collection).NewDoc().ID
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, firestoreError("get "+collection, err)
	}
	return &Document{ID: snap.Ref.ID, Data: normalizeMap(snap.Data())}, nil
}

func (s *FirestoreStore) Create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	_, err := s.client.Collection(collection).Doc(id).Create(ctx, normalizeMap(data))
	return firestoreError("create "+collection, err)
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, normalizeMap(data))
	return firestoreError("set "+collection, err)
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, updates ...Update) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, firestoreUpdates(updates))
	return firestoreError("update "+collection, err)
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return firestoreError("delete "+collection, err)
}

func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	snaps, err := s.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, firestoreError("query "+q.Collection, err)
	}

	docs := make([]*Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, &Document{ID: snap.Ref.ID, Data: normalizeMap(snap.Data())})
	}
	return docs, nil
}

func (s *FirestoreStore) Watch(ctx context.Context, q Query) (*Subscription, error) {
	sub := newSubscription(ctx)
	it := s.query(q).Snapshots(sub.ctx)

	go func() {
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if err == iterator.Done || sub.ctx.Err() != nil || status.Code(err) == codes.Canceled {
					sub.Close()
					return
				}
				sub.fail(firestoreError("watch "+q.Collection, err))
				return
			}

			snaps, err := qs.Documents.GetAll()
			if err != nil {
				sub.fail(firestoreError("watch "+q.Collection, err))
				return
			}
			snapshot := Snapshot{Docs: make([]*Document, 0, len(snaps))}
			for _, snap := range snaps {
				snapshot.Docs = append(snapshot.Docs, &Document{ID: snap.Ref.ID, Data: normalizeMap(snap.Data())})
			}
			for _, change := range qs.Changes {
				snapshot.Changes = append(snapshot.Changes, Change{
					Kind: firestoreChangeKind(change.Kind),
					Doc:  &Document{ID: change.Doc.Ref.ID, Data: normalizeMap(change.Doc.Data())},
				})
			}
			sub.push(snapshot)
		}
	}()
	go sub.run(nil)

	return sub, nil
}

func (s *FirestoreStore) Batch() Batch {
	return &firestoreBatch{store: s, batch: s.client.Batch()}
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) query(q Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Direction == Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

type firestoreBatch struct {
	store *FirestoreStore
	batch *firestore.WriteBatch
	n     int
}

func (b *firestoreBatch) ref(collection, id string) *firestore.DocumentRef {
	return b.store.client.Collection(collection).Doc(id)
}

func (b *firestoreBatch) Create(collection, id string, data map[string]interface{}) {
	b.batch.Create(b.ref(collection, id), normalizeMap(data))
	b.n++
}

func (b *firestoreBatch) Set(collection, id string, data map[string]interface{}) {
	b.batch.Set(b.ref(collection, id), normalizeMap(data))
	b.n++
}

func (b *firestoreBatch) Update(collection, id string, updates ...Update) {
	b.batch.Update(b.ref(collection, id), firestoreUpdates(updates))
	b.n++
}

func (b *firestoreBatch) Delete(collection, id string) {
	b.batch.Delete(b.ref(collection, id))
	b.n++
}

func (b *firestoreBatch) Len() int {
	return b.n
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if b.n == 0 {
		return nil
	}
	if b.n > firestoreMaxBatchWrites {
		return ErrBatchTooLarge
	}
	_, err := b.batch.Commit(ctx)
	return firestoreError("commit", err)
}

func firestoreUpdates(updates []Update) []firestore.Update {
	out := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		out = append(out, firestore.Update{
			FieldPath: firestore.FieldPath(strings.Split(u.Path, ".")),
			Value:     normalize(u.Value),
		})
	}
	return out
}

func firestoreChangeKind(kind firestore.DocumentChangeKind) ChangeKind {
	switch kind {
	case firestore.DocumentAdded:
		return Added
	case firestore.DocumentRemoved:
		return Removed
	}
	return Modified
}

func firestoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return ErrNotFound
	case codes.AlreadyExists:
		return ErrAlreadyExists
	}
	return &Error{Op: op, Err: errors.WithStack(err)}
}
