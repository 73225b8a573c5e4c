package docstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSQLiteStore runs the SQL store against a real SQLite database file.
func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Options{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "relations.db")})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	created := time.Date(2024, time.January, 1, 8, 0, 0, 500, time.UTC)
	ada, err := store.Add(ctx, Contacts, Fields{"name": "Ada", "userId": "u1", "email": nil, "createdAt": created, "interactions": 0})
	require.NoError(t, err)
	_, err = store.Add(ctx, Contacts, Fields{"name": "Grace", "userId": "u1"})
	require.NoError(t, err)
	_, err = store.Add(ctx, Contacts, Fields{"name": "Alan", "userId": "u2"})
	require.NoError(t, err)

	doc, found, err := store.Get(ctx, Contacts, ada)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created, doc.Fields["createdAt"])
	assert.Nil(t, doc.Fields["email"])

	docs, err := store.Query(ctx, Contacts, Query{Where: []Filter{{Field: "userId", Value: "u1"}}, OrderBy: "name", Descending: true})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Grace", docs[0].Fields["name"])
	assert.Equal(t, "Ada", docs[1].Fields["name"])

	require.NoError(t, store.Update(ctx, Contacts, ada, Fields{"email": "ada@example.org", "updatedAt": created.Add(time.Hour)}))
	require.NoError(t, store.Increment(ctx, Contacts, ada, "interactions", 2))
	require.NoError(t, store.Increment(ctx, Contacts, ada, "interactions", -1))
	doc, _, err = store.Get(ctx, Contacts, ada)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", doc.Fields["email"])
	assert.Equal(t, created.Add(time.Hour), doc.Fields["updatedAt"])
	assert.Equal(t, 1.0, doc.Fields["interactions"])

	// unchanged values still count as a matched document
	require.NoError(t, store.Update(ctx, Contacts, ada, Fields{"email": "ada@example.org"}))
	assert.True(t, IsNotFound(store.Update(ctx, Contacts, "missing", Fields{"email": "x"})))

	require.NoError(t, store.Delete(ctx, Contacts, ada))
	_, found, err = store.Get(ctx, Contacts, ada)
	require.NoError(t, err)
	assert.False(t, found)
}

// TestInMemorySQLiteIsPrivate expects every store opened without a path to get its own
// database.
func TestInMemorySQLiteIsPrivate(t *testing.T) {
	ctx := context.Background()
	first, err := Open(ctx, Options{Driver: DriverSQLite})
	require.NoError(t, err)
	defer first.Close()
	second, err := Open(ctx, Options{Driver: DriverSQLite})
	require.NoError(t, err)
	defer second.Close()

	id, err := first.Add(ctx, Contacts, Fields{"name": "Ada", "userId": "u1"})
	require.NoError(t, err)

	docs, err := first.Query(ctx, Contacts, Query{Where: []Filter{{Field: "userId", Value: "u1"}}})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = second.Query(ctx, Contacts, Query{Where: []Filter{{Field: "userId", Value: "u1"}}})
	require.NoError(t, err)
	assert.Empty(t, docs)
	_, found, err := second.Get(ctx, Contacts, id)
	require.NoError(t, err)
	assert.False(t, found)
}
