package roster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashutoshvm-off/library-attendance/internal/localstore"
	"github.com/ashutoshvm-off/library-attendance/internal/remote"
	"github.com/ashutoshvm-off/library-attendance/internal/syncer"
)

func newTestRoster(t *testing.T) (*Service, *syncer.Service, *remote.Memory) {
	t.Helper()
	loc, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	mem := remote.NewMemory()
	sync := syncer.New(loc, mem, syncer.NewFileJournal(loc), syncer.Options{})
	svc := NewService(loc, mem, sync)
	sync.Probe(context.Background())
	return svc, sync, mem
}

func TestCreateAndList(t *testing.T) {
	svc, _, mem := newTestRoster(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, Entry{SubjectID: " s100 ", Name: "Meera K", Email: "meera@example.edu"})
	require.NoError(t, err)
	assert.Equal(t, "S100", entry.SubjectID, "admission ids are normalized")
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 1, mem.Count(remote.Roster))

	entries := svc.List(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "Meera K", entries[0].Name)
}

func TestCreateDuplicateFails(t *testing.T) {
	svc, _, mem := newTestRoster(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, Entry{SubjectID: "S101", Name: "First"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, Entry{SubjectID: "s101", Name: "Second"})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Nothing new was written anywhere.
	assert.Equal(t, 1, mem.Count(remote.Roster))
	assert.Len(t, svc.List(ctx), 1)
}

func TestCreateRequiresIDAndName(t *testing.T) {
	svc, _, _ := newTestRoster(t)
	_, err := svc.Create(context.Background(), Entry{SubjectID: "S102"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Create(context.Background(), Entry{Name: "No ID"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEnsureAutoRegistersOnce(t *testing.T) {
	svc, _, mem := newTestRoster(t)
	ctx := context.Background()

	entry, err := svc.Ensure(ctx, "S103")
	require.NoError(t, err)
	assert.Equal(t, "Student S103", entry.Name)

	again, err := svc.Ensure(ctx, "s103")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, again.ID)
	assert.Equal(t, 1, mem.Count(remote.Roster))
}

func TestUpdateProfileFields(t *testing.T) {
	svc, _, _ := newTestRoster(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, Entry{SubjectID: "S104", Name: "Before"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, entry.ID, Entry{Name: "After", Phone: "555-0104"})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, "S104", updated.SubjectID, "admission id is immutable")

	_, err = svc.Update(ctx, "missing-id", Entry{Name: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, _, mem := newTestRoster(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, Entry{SubjectID: "S105", Name: "Gone Soon"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, entry.ID))
	assert.Equal(t, 0, mem.Count(remote.Roster))
	assert.ErrorIs(t, svc.Delete(ctx, entry.ID), ErrNotFound)
}

func TestGuardRegisteredWithQueue(t *testing.T) {
	// Offline create, concurrent remote create, then retry: the guard must
	// reconcile rather than duplicate.
	loc, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	mem := remote.NewMemory()
	sync := syncer.New(loc, mem, syncer.NewFileJournal(loc), syncer.Options{})
	svc := NewService(loc, mem, sync)

	ctx := context.Background()
	mem.SetAvailable(false)
	sync.Probe(ctx)
	_, err = svc.Create(ctx, Entry{SubjectID: "S106", Name: "Mine"})
	require.NoError(t, err)
	require.Equal(t, 1, sync.Status().Pending)

	mem.SetAvailable(true)
	_, err = mem.Create(ctx, remote.Roster, remote.Document{"subject_id": "S106", "name": "Theirs"})
	require.NoError(t, err)

	sync.Probe(ctx)
	assert.Equal(t, 0, sync.Status().Pending)
	assert.Equal(t, 1, mem.Count(remote.Roster))
}
