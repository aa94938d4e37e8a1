package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCRUD(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	id, err := mem.Create(ctx, Roster, Document{"subject_id": "S1", "name": "A"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := mem.Get(ctx, Roster, id)
	require.NoError(t, err)
	assert.Equal(t, "A", doc["name"])

	require.NoError(t, mem.Update(ctx, Roster, id, Document{"subject_id": "S1", "name": "B"}))
	doc, err = mem.Get(ctx, Roster, id)
	require.NoError(t, err)
	assert.Equal(t, "B", doc["name"])

	require.NoError(t, mem.Delete(ctx, Roster, id))
	_, err = mem.Get(ctx, Roster, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, mem.Delete(ctx, Roster, id), ErrNotFound)
}

func TestMemoryQuery(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	for _, d := range []Document{
		{"subject_id": "S2", "date": "2025-05-01"},
		{"subject_id": "S1", "date": "2025-05-02"},
		{"subject_id": "S3", "date": "2025-05-01"},
	} {
		_, err := mem.Create(ctx, Records, d)
		require.NoError(t, err)
	}

	byDate, err := mem.List(ctx, Records, Query{Field: "date", Equals: "2025-05-01"})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	sorted, err := mem.List(ctx, Records, Query{SortBy: "subject_id", Desc: true})
	require.NoError(t, err)
	require.Len(t, sorted, 3)
	assert.Equal(t, "S3", sorted[0]["subject_id"])

	limited, err := mem.List(ctx, Records, Query{SortBy: "subject_id", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "S1", limited[0]["subject_id"])
}

func TestMemoryUnavailable(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	mem.SetAvailable(false)

	_, err := mem.Create(ctx, Roster, Document{"subject_id": "S1"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = mem.List(ctx, Roster, Query{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, mem.Ping(ctx), ErrUnavailable)

	mem.SetAvailable(true)
	assert.NoError(t, mem.Ping(ctx))
}

func TestMemoryListIsolation(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	id, err := mem.Create(ctx, Roster, Document{"subject_id": "S1", "name": "A"})
	require.NoError(t, err)

	docs, err := mem.List(ctx, Roster, Query{})
	require.NoError(t, err)
	docs[0]["name"] = "mutated"

	doc, err := mem.Get(ctx, Roster, id)
	require.NoError(t, err)
	assert.Equal(t, "A", doc["name"], "listed documents are copies")
}
