package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrBatchTooLarge = errors.New("batch exceeds the backend write limit")
)

// Error wraps any failure of the underlying backend (network, permission,
// quota). Not-found and already-exists conditions are reported with the bare
// sentinels instead so that callers can translate them.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Op is a query predicate operator.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Query selects documents of one collection. Collection may be a nested path
// such as "chats/{chatId}/messages".
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where returns a copy of q with an additional predicate.
func (q Query) Where(field string, op Op, value interface{}) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: normalize(value)})
	return q
}

func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Document is a point-in-time copy of a stored document.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// DataTo decodes the document into v, a pointer to a struct with firestore tags.
func (d *Document) DataTo(v interface{}) error {
	return Decode(d.Data, v)
}

// Update sets the value at a dotted field path.
type Update struct {
	Path  string
	Value interface{}
}

type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return "unknown"
}

type Change struct {
	Kind ChangeKind
	Doc  *Document
}

// Snapshot is the full result set of a watched query plus the changes since
// the previous snapshot delivered on the same subscription.
type Snapshot struct {
	Docs    []*Document
	Changes []Change
}

// Batch collects writes that commit all-or-nothing. A batch gives no
// isolation against concurrent unrelated writes.
type Batch interface {
	// Create fails the whole batch with ErrAlreadyExists if the document exists.
	Create(collection, id string, data map[string]interface{})
	Set(collection, id string, data map[string]interface{})
	// Update fails the whole batch with ErrNotFound if the document is missing.
	Update(collection, id string, updates ...Update)
	Delete(collection, id string)
	Len() int
	Commit(ctx context.Context) error
}

// DocumentStore is the persistence capability consumed by the managers.
type DocumentStore interface {
	NewID(collection string) string
	Get(ctx context.Context, collection, id string) (*Document, error)
	Create(ctx context.Context, collection, id string, data map[string]interface{}) error
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error
	Update(ctx context.Context, collection, id string, updates ...Update) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]*Document, error)
	// Watch delivers the current result set immediately and then a new
	// snapshot whenever it changes. The subscription must be closed.
	Watch(ctx context.Context, q Query) (*Subscription, error)
	Batch() Batch
	Close() error
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err means a create hit an existing document.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
