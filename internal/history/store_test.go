package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultrecon/internal/recon"
	"vaultrecon/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func result(name string, source, lost, deleted int64) recon.Result {
	return recon.Result{
		TableName:       name,
		SourceTable:     "SRC.PUBLIC." + name,
		SourceCount:     source,
		HubCount:        source - lost,
		SourceToHubLoss: lost,
		TotalRowsLost:   lost,
		DeletedRecords:  deleted,
	}
}

func TestSaveAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := store.SaveRun(ctx, Run{
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		ConfigFile: "/cfg/a.yaml",
		Revision:   "1111111",
		Results:    []recon.Result{result("ORDERS", 100, 3, 1), result("CUSTOMERS", 50, 0, 0)},
	})
	require.NoError(t, err)

	second, err := store.SaveRun(ctx, Run{
		StartedAt: start.Add(24 * time.Hour),
		Revision:  "2222222-dirty",
		Results:   []recon.Result{result("ORDERS", 110, 1, 2)},
	})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, "2222222-dirty", runs[0].Revision)
	assert.Equal(t, 1, runs[0].TableCount)
	assert.Equal(t, int64(1), runs[0].TotalRowsLost)
	assert.False(t, runs[0].FinishedAt.IsZero())

	assert.Equal(t, first, runs[1].ID)
	assert.Equal(t, "/cfg/a.yaml", runs[1].ConfigFile)
	assert.Equal(t, 2, runs[1].TableCount)
	assert.Equal(t, int64(3), runs[1].TotalRowsLost)
	assert.True(t, start.Equal(runs[1].StartedAt))
	assert.True(t, start.Add(time.Minute).Equal(runs[1].FinishedAt))
	assert.Nil(t, runs[1].Results)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTableTrend(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i, lost := range []int64{5, 2, 0} {
		_, err := store.SaveRun(ctx, Run{
			StartedAt: time.Unix(int64(1700000000+i*3600), 0),
			Results:   []recon.Result{result("ORDERS", 100, lost, int64(i)), result("OTHER", 10, 1, 0)},
		})
		require.NoError(t, err)
	}

	points, err := store.TableTrend(ctx, "orders", 0)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, int64(0), points[0].TotalRowsLost)
	assert.Equal(t, int64(2), points[1].TotalRowsLost)
	assert.Equal(t, int64(5), points[2].SourceToHub)
	assert.Equal(t, int64(95), points[2].HubCount)
	assert.Equal(t, int64(2), points[0].DeletedRecords)
	assert.True(t, points[0].StartedAt.After(points[1].StartedAt))

	none, err := store.TableTrend(ctx, "MISSING", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveRunWithoutResults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.SaveRun(ctx, Run{})
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Zero(t, runs[0].TableCount)
	assert.Equal(t, runs[0].StartedAt, runs[0].FinishedAt)
}

func TestOpenRejectsTraversal(t *testing.T) {
	_, err := Open("../history.db")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeHistoryFailed, errors.GetErrorCode(err))
}
