package switchpoint

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// fixtureDatabases are the sqlite files every fixture creates. Each database
// holds a marker row with its own name and an empty users table.
var fixtureDatabases = []string{"main_primary", "main_replica", "user_primary", "comment_replica"}

type fixture struct {
	dir    string
	config types.Config
	repo   *Repository
}

// newFixture builds a repository over fresh sqlite files:
//
//	main:    readonly main_replica,    writable main_primary
//	user:    readonly main_replica,    writable user_primary
//	comment: readonly comment_replica, writable user_primary
func newFixture(t *testing.T, mutate func(*types.Config), opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()

	config := types.Config{
		Default:      "main_primary",
		Databases:    make(map[string]types.Database),
		SwitchPoints: map[string]types.SwitchPointConfig{
			"main":    {Readonly: "main_replica", Writable: "main_primary"},
			"user":    {Readonly: "main_replica", Writable: "user_primary"},
			"comment": {Readonly: "comment_replica", Writable: "user_primary"},
		},
	}
	for _, name := range fixtureDatabases {
		dsn := filepath.Join(dir, name+".db")
		config.Databases[name] = types.Database{Driver: types.DriverSQLite, DSN: dsn}
		seed(t, dsn, name)
	}
	if mutate != nil {
		mutate(&config)
	}

	repo, err := New(config, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return &fixture{dir: dir, config: config, repo: repo}
}

func seed(t *testing.T, dsn, name string) {
	t.Helper()
	db, err := sql.Open(types.DriverSQLite, dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		"CREATE TABLE IF NOT EXISTS marker (name TEXT NOT NULL)",
		"CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"DELETE FROM marker",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	_, err = db.Exec("INSERT INTO marker (name) VALUES (?)", name)
	require.NoError(t, err)
}

// replicate applies stmt to a database directly, standing in for replication.
func (f *fixture) replicate(t *testing.T, database, stmt string, args ...any) {
	t.Helper()
	db, err := sql.Open(types.DriverSQLite, f.config.Databases[database].DSN)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(stmt, args...)
	require.NoError(t, err)
}

func (f *fixture) proxy(t *testing.T, name string) *Proxy {
	t.Helper()
	p, err := f.repo.Checkout(name)
	require.NoError(t, err)
	return p
}

// markerOf returns the marker of the database conn is connected to.
func markerOf(t *testing.T, ctx context.Context, conn *Conn) string {
	t.Helper()
	var name string
	require.NoError(t, conn.Raw().QueryRowContext(ctx, "SELECT name FROM marker").Scan(&name))
	return name
}

// routedTo checks out a connection through p and returns its database marker.
func routedTo(t *testing.T, ctx context.Context, p *Proxy) string {
	t.Helper()
	conn, err := p.Connection(ctx)
	require.NoError(t, err)
	defer conn.Close()
	return markerOf(t, ctx, conn)
}

func countUsers(ctx context.Context, conn *Conn) (int, error) {
	var n int
	err := conn.Raw().QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
