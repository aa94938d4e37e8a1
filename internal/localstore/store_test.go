package localstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	in := []map[string]any{{"id": "a", "name": "Ada"}}
	store.Write(KeyRoster, in)

	var out []map[string]any
	require.True(t, store.Read(KeyRoster, &out))
	assert.Equal(t, "Ada", out[0]["name"])
}

func TestReadMissingKey(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	var out []map[string]any
	assert.False(t, store.Read("no-such-key", &out))
	assert.Nil(t, out)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	store.Write(KeyRecords, []map[string]any{{"id": "r1"}})

	reopened, err := Open(dir)
	require.NoError(t, err)
	docs := reopened.Documents(KeyRecords)
	require.Len(t, docs, 1)
	assert.Equal(t, "r1", DocID(docs[0]))
}

func TestDocumentHelpers(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	store.Append(KeyRoster, Document{"id": "tmp_1", "name": "Ada"})
	store.Append(KeyRoster, Document{"id": "x2", "name": "Grace"})

	doc, ok := store.Find(KeyRoster, "tmp_1")
	require.True(t, ok)
	assert.Equal(t, "Ada", doc["name"])

	require.True(t, store.Replace(KeyRoster, "x2", Document{"id": "x2", "name": "Grace H"}))
	doc, _ = store.Find(KeyRoster, "x2")
	assert.Equal(t, "Grace H", doc["name"])

	store.RewriteID(KeyRoster, "tmp_1", "srv_9")
	_, ok = store.Find(KeyRoster, "tmp_1")
	assert.False(t, ok)
	_, ok = store.Find(KeyRoster, "srv_9")
	assert.True(t, ok)

	require.True(t, store.Remove(KeyRoster, "srv_9"))
	assert.Len(t, store.Documents(KeyRoster), 1)
	assert.False(t, store.Remove(KeyRoster, "srv_9"))
}

func TestTimeRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	assert.True(t, store.ReadTime(KeyLastSync).IsZero())

	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	store.WriteTime(KeyLastSync, now)
	assert.Equal(t, now, store.ReadTime(KeyLastSync))
}
