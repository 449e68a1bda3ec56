package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/refdata"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleDepartment(code string) *refdata.Department {
	return &refdata.Department{
		Code: code,
		Communes: []refdata.Commune{
			{Insee: code + "001", Name: "Testville", PostalCodes: []string{code + "100"},
				Centre: &model.Point{Lat: 45, Lon: 4}, Radius: 2},
		},
	}
}

func TestSQLite_DepartmentSetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutDepartment(ctx, sampleDepartment("69"), time.Hour))

	d, err := st.GetDepartment(ctx, "69")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "69", d.Code)
	require.Len(t, d.Communes, 1)
	assert.Equal(t, "Testville", d.Communes[0].Name)
	assert.Equal(t, 45.0, d.Communes[0].Centre.Lat)
}

func TestSQLite_DepartmentMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	d, err := st.GetDepartment(context.Background(), "01")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSQLite_DepartmentExpired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutDepartment(ctx, sampleDepartment("69"), -time.Hour))

	d, err := st.GetDepartment(ctx, "69")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSQLite_PutReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutDepartment(ctx, sampleDepartment("69"), -time.Hour))
	require.NoError(t, st.PutDepartment(ctx, sampleDepartment("69"), time.Hour))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Expired: 0}, stats)
}

func TestSQLite_PurgeAndStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutDepartment(ctx, sampleDepartment("01"), time.Hour))
	require.NoError(t, st.PutDepartment(ctx, sampleDepartment("02"), -time.Hour))
	require.NoError(t, st.PutDepartment(ctx, sampleDepartment("03"), -time.Minute))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Expired)

	n, err := st.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err = st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1}, stats)
}

func TestSQLite_ExpiryFollowsClock(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }

	require.NoError(t, st.PutDepartment(ctx, sampleDepartment("69"), time.Hour))

	st.now = func() time.Time { return base.Add(30 * time.Minute) }
	d, err := st.GetDepartment(ctx, "69")
	require.NoError(t, err)
	assert.NotNil(t, d)

	st.now = func() time.Time { return base.Add(2 * time.Hour) }
	d, err = st.GetDepartment(ctx, "69")
	require.NoError(t, err)
	assert.Nil(t, d)
}

type stubLoader struct {
	calls int
	err   error
}

func (s *stubLoader) Load(_ context.Context, code string) (*refdata.Department, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return sampleDepartment(code), nil
}

func TestCachedLoader_WritesThrough(t *testing.T) {
	st := newTestSQLiteStore(t)
	next := &stubLoader{}
	l := NewCachedLoader(st, next, time.Hour)
	ctx := context.Background()

	d, err := l.Load(ctx, "69")
	require.NoError(t, err)
	assert.Equal(t, "69", d.Code)

	d, err = l.Load(ctx, "69")
	require.NoError(t, err)
	assert.Equal(t, "69", d.Code)
	assert.Equal(t, 1, next.calls)
}

func TestCachedLoader_PropagatesNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	next := &stubLoader{err: refdata.ErrNotFound}
	l := NewCachedLoader(st, next, 0)

	_, err := l.Load(context.Background(), "98")
	assert.True(t, errors.Is(err, refdata.ErrNotFound))

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestCachedLoader_ReadFailureFallsThrough(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Close())

	next := &stubLoader{}
	l := NewCachedLoader(st, next, time.Hour)

	d, err := l.Load(context.Background(), "69")
	require.NoError(t, err)
	assert.Equal(t, "69", d.Code)
	assert.Equal(t, 1, next.calls)
}
