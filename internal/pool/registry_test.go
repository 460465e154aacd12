package pool

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

func sqliteDatabases(t *testing.T, names ...string) map[string]types.Database {
	t.Helper()
	dir := t.TempDir()
	dbs := make(map[string]types.Database, len(names))
	for _, name := range names {
		dbs[name] = types.Database{Driver: types.DriverSQLite, DSN: filepath.Join(dir, name+".db")}
	}
	return dbs
}

// countingOpener wraps OpenSQL and counts opens per id.
func countingOpener(counts *sync.Map) Opener {
	return func(ctx context.Context, id types.PhysicalID, config types.Database) (*sql.DB, error) {
		n, _ := counts.LoadOrStore(id, new(int64))
		atomic.AddInt64(n.(*int64), 1)
		return OpenSQL(ctx, id, config)
	}
}

func TestRegistry_PoolIdentity(t *testing.T) {
	r := NewRegistry(sqliteDatabases(t, "primary", "replica"))
	defer r.Close()
	ctx := context.Background()

	a, err := r.PoolFor(ctx, "primary")
	require.NoError(t, err)
	b, err := r.PoolFor(ctx, " primary ")
	require.NoError(t, err)
	assert.Same(t, a, b, "equal ids must share one pool")

	c, err := r.PoolFor(ctx, "replica")
	require.NoError(t, err)
	assert.NotSame(t, a, c, "different ids must never share a pool")
	assert.Equal(t, types.PhysicalID("replica"), c.ID())
	assert.Equal(t, types.DriverSQLite, c.Driver())
}

func TestRegistry_ConcurrentFirstUse(t *testing.T) {
	var counts sync.Map
	r := NewRegistry(sqliteDatabases(t, "primary"), WithOpener(countingOpener(&counts)))
	defer r.Close()

	const workers = 32
	pools := make([]*Pool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.PoolFor(context.Background(), "primary")
			assert.NoError(t, err)
			pools[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range pools {
		assert.Same(t, pools[0], p)
	}
	n, ok := counts.Load(types.PhysicalID("primary"))
	require.True(t, ok)
	assert.Equal(t, int64(1), atomic.LoadInt64(n.(*int64)))
}

func TestRegistry_UnknownDatabase(t *testing.T) {
	r := NewRegistry(sqliteDatabases(t, "primary"))
	defer r.Close()

	_, err := r.PoolFor(context.Background(), "missing")
	require.ErrorIs(t, err, types.ErrDatabaseUnknown)
}

func TestRegistry_OpenerFailureIsConnectionError(t *testing.T) {
	boom := errors.New("driver exploded")
	r := NewRegistry(sqliteDatabases(t, "primary"), WithOpener(
		func(context.Context, types.PhysicalID, types.Database) (*sql.DB, error) {
			return nil, boom
		}))
	defer r.Close()

	_, err := r.PoolFor(context.Background(), "primary")
	var connErr *types.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, types.PhysicalID("primary"), connErr.Target)
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_ResetCreatesFreshPools(t *testing.T) {
	dbs := sqliteDatabases(t, "primary")
	r := NewRegistry(dbs)
	defer r.Close()
	ctx := context.Background()

	before, err := r.PoolFor(ctx, "primary")
	require.NoError(t, err)

	require.NoError(t, r.Reset(dbs))
	after, err := r.PoolFor(ctx, "primary")
	require.NoError(t, err)
	assert.NotSame(t, before, after)

	// The old pool was closed.
	err = before.DB().PingContext(ctx)
	assert.Error(t, err)
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry(sqliteDatabases(t, "primary"))
	_, err := r.PoolFor(context.Background(), "primary")
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "Close is idempotent")

	_, err = r.PoolFor(context.Background(), "primary")
	require.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistry_IDsAndEach(t *testing.T) {
	r := NewRegistry(sqliteDatabases(t, "b", "a", "c"))
	defer r.Close()
	assert.Equal(t, []types.PhysicalID{"a", "b", "c"}, r.IDs())

	ctx := context.Background()
	for _, id := range []types.PhysicalID{"c", "a"} {
		_, err := r.PoolFor(ctx, id)
		require.NoError(t, err)
	}
	var seen []types.PhysicalID
	r.Each(func(p *Pool) { seen = append(seen, p.ID()) })
	assert.Equal(t, []types.PhysicalID{"a", "c"}, seen)
}

func TestPool_CheckoutRelease(t *testing.T) {
	r := NewRegistry(sqliteDatabases(t, "primary"))
	defer r.Close()
	ctx := context.Background()

	p, err := r.PoolFor(ctx, "primary")
	require.NoError(t, err)
	require.NoError(t, p.Ping(ctx))

	lease, err := p.Checkout(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, lease.ID())
	assert.Same(t, p, lease.Pool())

	_, err = lease.Conn().ExecContext(ctx, "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stats().InUse)

	require.NoError(t, lease.Release())
	require.NoError(t, lease.Release(), "Release is idempotent")
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestPool_CheckoutCancelled(t *testing.T) {
	r := NewRegistry(sqliteDatabases(t, "primary"))
	defer r.Close()

	p, err := r.PoolFor(context.Background(), "primary")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Checkout(ctx)
	var connErr *types.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, context.Canceled)
}
