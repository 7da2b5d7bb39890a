package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codecState string

type codecSnapshot struct {
	Name  string `firestore:"name"`
	Image string `firestore:"image"`
}

type codecDoc struct {
	ID        string                   `firestore:"-"`
	State     codecState               `firestore:"state"`
	Users     []string                 `firestore:"users"`
	Details   map[string]codecSnapshot `firestore:"details"`
	Count     int                      `firestore:"count"`
	Note      *string                  `firestore:"note"`
	CreatedAt time.Time                `firestore:"createdAt"`
}

func TestEncode(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	data := Encode(&codecDoc{
		ID:        "ignored",
		State:     "pending",
		Users:     []string{"a", "b"},
		Details:   map[string]codecSnapshot{"a": {Name: "Alice", Image: "a.png"}},
		Count:     3,
		CreatedAt: at,
	})

	assert.NotContains(t, data, "ID")
	assert.Equal(t, "pending", data["state"])
	assert.Equal(t, []interface{}{"a", "b"}, data["users"])
	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{"name": "Alice", "image": "a.png"},
	}, data["details"])
	assert.Equal(t, int64(3), data["count"])
	assert.Nil(t, data["note"])
	assert.Equal(t, at.UTC(), data["createdAt"])
}

func TestDecode(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var doc codecDoc
	err := Decode(map[string]interface{}{
		"state":     "accepted",
		"users":     []interface{}{"a", "b"},
		"details":   map[string]interface{}{"b": map[string]interface{}{"name": "Bob", "image": ""}},
		"count":     int64(7),
		"note":      "hi",
		"createdAt": at,
	}, &doc)
	require.NoError(t, err)

	assert.Equal(t, codecState("accepted"), doc.State)
	assert.Equal(t, []string{"a", "b"}, doc.Users)
	assert.Equal(t, "Bob", doc.Details["b"].Name)
	assert.Equal(t, 7, doc.Count)
	require.NotNil(t, doc.Note)
	assert.Equal(t, "hi", *doc.Note)
	assert.True(t, at.Equal(doc.CreatedAt))
}

func TestDecode_TypeMismatch(t *testing.T) {
	var doc codecDoc
	err := Decode(map[string]interface{}{"count": "many"}, &doc)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	type named string
	assert.Equal(t, "x", normalize(named("x")))
	assert.Equal(t, int64(4), normalize(int32(4)))
	assert.Equal(t, int64(4), normalize(uint8(4)))
	assert.Equal(t, float64(1.5), normalize(float32(1.5)))
	assert.Nil(t, normalize((*string)(nil)))
	assert.Nil(t, normalize([]string(nil)))
	assert.Equal(t, map[string]interface{}{}, normalizeMap(nil))
}
