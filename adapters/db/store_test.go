package db

import (
	"context"
	"math"
	"testing"

	"clusterkit/adapters/db/migrations"
	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	store := NewStore(conn, internal.NewNopLogger())
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func sampleContainer(t *testing.T) *data.Data {
	t.Helper()
	d := data.New("a", "b")
	_, err := d.AppendPoint([]complex128{1, 0.1 + 2i}, []float64{0.5, 1.0 / 3.0})
	require.NoError(t, err)
	_, err = d.AppendPoint([]complex128{-2, 3i}, []float64{math.NaN(), 7})
	require.NoError(t, err)
	require.NoError(t, d.SetIntColumn(data.ColumnCluster, []int{1, 0}))
	d.SetMeta("scan.mode", "equidist")
	return d
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := sampleContainer(t)
	require.NoError(t, store.Save(ctx, "scan", d))

	got, err := store.Load(ctx, "scan")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.CoeffNames())
	assert.Equal(t, d.Points(), got.Points())
	assert.Equal(t, d.Index(), got.Index())

	outputs := got.Outputs()
	assert.Equal(t, []float64{0.5, 1.0 / 3.0}, outputs[0])
	assert.True(t, math.IsNaN(outputs[1][0]))
	assert.Equal(t, 7.0, outputs[1][1])

	labels, err := got.IntColumn(data.ColumnCluster)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, labels)

	mode, ok := got.Meta("scan.mode")
	require.True(t, ok)
	assert.Equal(t, "equidist", mode)
}

func TestStore_KeepsOriginIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := sampleContainer(t)
	sub, err := d.Subset([]int{1})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "sub", sub))

	got, err := store.Load(ctx, "sub")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got.Index())

	// new rows continue after the highest origin id
	row, err := got.AppendPoint([]complex128{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, row)
	assert.Equal(t, []int{1, 2}, got.Index())
}

func TestStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "ds", sampleContainer(t)))
	require.NoError(t, store.Save(ctx, "ds", data.New("x")))

	got, err := store.Load(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, []string{"x"}, got.CoeffNames())
	assert.Empty(t, got.AuxiliaryColumns())
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, core.IsNotFoundError(err))

	err = store.Delete(context.Background(), "missing")
	assert.True(t, core.IsNotFoundError(err))
}

func TestStore_ListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "b", data.New("x")))
	require.NoError(t, store.Save(ctx, "a", sampleContainer(t)))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.DatasetName{"a", "b"}, names)

	require.NoError(t, store.Delete(ctx, "a"))
	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.DatasetName{"b"}, names)
}

func TestStore_InvalidInput(t *testing.T) {
	store := newTestStore(t)

	assert.True(t, core.IsInputError(store.Save(context.Background(), "", data.New())))
	assert.True(t, core.IsInputError(store.Save(context.Background(), "x", nil)))
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))

	applied, err := migrations.NewMigrator(store.conn).Applied(context.Background())
	require.NoError(t, err)
	assert.True(t, applied["001"])
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}
