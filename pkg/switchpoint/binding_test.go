package switchpoint

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

func TestBind_UnknownNameFailsAtBindTime(t *testing.T) {
	fx := newFixture(t, nil)

	_, err := fx.repo.Bind("archive")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestBinding_ManagedSharesProxy(t *testing.T) {
	fx := newFixture(t, nil)

	a, err := fx.repo.Bind("user")
	require.NoError(t, err)
	b, err := fx.repo.Bind("user")
	require.NoError(t, err)

	assert.True(t, a.Managed())
	assert.Same(t, a.Proxy(), b.Proxy())
}

func TestBinding_UnmanagedUsesDefault(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	b, err := fx.repo.Bind("")
	require.NoError(t, err)
	assert.False(t, b.Managed())
	assert.Nil(t, b.Proxy())

	err = b.WithReadonly(ctx, func(ctx context.Context) error {
		conn, err := b.Connection(ctx)
		require.NoError(t, err)
		defer conn.Close()
		assert.False(t, conn.Managed())
		assert.Equal(t, "main_primary", markerOf(t, ctx, conn))
		return nil
	})
	require.NoError(t, err)

	_, err = b.Exec(ctx, "INSERT INTO users (name) VALUES (?)", "hank")
	require.NoError(t, err, "unmanaged bindings never reject writes")
}

func TestBinding_UnmanagedWithoutDefault(t *testing.T) {
	fx := newFixture(t, func(c *types.Config) { c.Default = "" })

	b, err := fx.repo.Bind("")
	require.NoError(t, err)
	_, err = b.Connection(context.Background())
	require.ErrorIs(t, err, ErrNoDefault)
}

func TestInWritable_ReturnsResultUnchanged(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	b, err := fx.repo.Bind("main")
	require.NoError(t, err)

	got, err := InWritable(ctx, b, func(ctx context.Context) (string, error) {
		conn, err := b.Connection(ctx)
		if err != nil {
			return "", err
		}
		defer conn.Close()
		return markerOf(t, ctx, conn), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "main_primary", got)

	boom := errors.New("boom")
	got, err = InReadonly(ctx, b, func(context.Context) (string, error) { return "partial", boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", got)

	unmanaged, err := fx.repo.Bind("")
	require.NoError(t, err)
	n, err := InWritable(ctx, unmanaged, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestBinding_QueryRoutesByMode(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	b, err := fx.repo.Bind("comment")
	require.NoError(t, err)

	marker := func(ctx context.Context) string {
		var name string
		err := b.Query(ctx, func(rows *sql.Rows) error {
			for rows.Next() {
				if err := rows.Scan(&name); err != nil {
					return err
				}
			}
			return nil
		}, "SELECT name FROM marker")
		require.NoError(t, err)
		return name
	}

	assert.Equal(t, "comment_replica", marker(ctx))
	err = b.WithWritable(ctx, func(ctx context.Context) error {
		assert.Equal(t, "user_primary", marker(ctx))
		_, err := b.Exec(ctx, "INSERT INTO users (name) VALUES (?)", "iris")
		return err
	})
	require.NoError(t, err)
}
