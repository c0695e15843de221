package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/SlabNest/internal/model"
	"github.com/piwi3910/SlabNest/internal/project"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "slabnest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db)
	require.NoError(t, s.Init(context.Background()))
	return s
}

func sampleProject(placed int) project.ResultFile {
	var parts []model.PlacementInstance
	for i := 1; i <= placed; i++ {
		parts = append(parts, model.PlacementInstance{ID: i, PartID: "p", Name: "P", InstanceIndex: i, Width: 100, Height: 100})
	}
	result := model.NestResult{
		Sheets:  []model.Sheet{{ID: "0", Width: 1000, Height: 1000, Parts: parts}},
		Parts:   parts,
		Skipped: []model.Failure{{PartID: "q", Kind: model.FailureGeometry}},
	}
	return project.NewResultFile(model.DefaultNestingConfig(), result)
}

func TestStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := sampleProject(2)
	require.NoError(t, s.SaveNesting(ctx, "order-1", p))

	got, err := s.GetNesting(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, p.Version, got.Version)
	assert.Equal(t, p.Config, got.Config)
	assert.Equal(t, 2, got.Result.PlacedCount())
}

func TestStore_SaveReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveNesting(ctx, "order-1", sampleProject(1)))
	require.NoError(t, s.SaveNesting(ctx, "order-1", sampleProject(3)))

	got, err := s.GetNesting(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Result.PlacedCount())

	list, err := s.ListNestings(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetNesting(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveRequiresOrderID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SaveNesting(context.Background(), "", sampleProject(1)))
}

func TestStore_ListNestings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		require.NoError(t, s.SaveNesting(ctx, id, sampleProject(i+1)))
	}

	list, err := s.ListNestings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "b", list[0].OrderID)
	assert.Equal(t, 2, list[0].Placed)
	assert.Equal(t, 1, list[0].Unplaced)
	assert.Equal(t, 1, list[0].Sheets)
	assert.InDelta(t, 2.0, list[0].Efficiency, 1e-9)
	assert.True(t, list[0].UpdatedAt.Equal(base.Add(time.Minute)))
	assert.Equal(t, "a", list[1].OrderID)
}

func TestStore_ListOrdersSubsecondTimes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	saves := []struct {
		id string
		at time.Time
	}{
		{"later", base.Add(120 * time.Millisecond)},
		{"earlier", base.Add(100 * time.Millisecond)},
		{"first", base},
	}
	for _, sv := range saves {
		at := sv.at
		s.now = func() time.Time { return at }
		require.NoError(t, s.SaveNesting(ctx, sv.id, sampleProject(1)))
	}

	list, err := s.ListNestings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "later", list[0].OrderID)
	assert.Equal(t, "earlier", list[1].OrderID)
	assert.Equal(t, "first", list[2].OrderID)
	assert.True(t, list[1].UpdatedAt.Equal(base.Add(100*time.Millisecond)))
}

func TestStore_ListEmpty(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListNestings(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveNesting(ctx, "order-1", sampleProject(1)))
	require.NoError(t, s.DeleteNesting(ctx, "order-1"))
	assert.ErrorIs(t, s.DeleteNesting(ctx, "order-1"), ErrNotFound)
}

func TestStore_Ping(t *testing.T) {
	assert.NoError(t, newTestStore(t).Ping(context.Background()))
}
