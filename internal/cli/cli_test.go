package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

const testConfig = `default: main
databases:
  main:         {driver: sqlite, dsn: main.db}
  main_replica: {driver: sqlite, dsn: replica.db}
  archive:      {driver: sqlite, dsn: archive.db}
switch_points:
  main:
    readonly: main_replica
    writable: main
  archive:
    writable: archive
`

// writeConfig writes content to a switchpoint.yaml in a fresh directory and
// returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "switchpoint.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the command tree with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SWITCHPOINT_OTEL_STDOUT", "")
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "switchpoint v0.1.0")
	assert.Contains(t, out, modulePath)
}

func TestInit_WritesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "switchpoint.yaml")

	out, err := run(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+path)
	assert.FileExists(t, path)

	out, err = run(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = run(t, "check", "--config", path)
	require.NoError(t, err, "the starter file is valid")
	assert.Contains(t, out, "is valid")
}

func TestCheck(t *testing.T) {
	path := writeConfig(t, testConfig)

	t.Run("table", func(t *testing.T) {
		out, err := run(t, "check", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "3 databases, 2 switch points")
		assert.Regexp(t, `archive\s+archive\s+archive`, out, "one-sided definitions use the same target for both modes")
		assert.Regexp(t, `main\s+main_replica\s+main`, out)
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "check", "--config", path, "--json")
		require.NoError(t, err)
		var report checkReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, []string{"archive", "main", "main_replica"}, report.Databases)
		assert.Equal(t, types.PhysicalID("main"), report.Default)
		assert.Equal(t, types.DefaultCacheSize, report.CacheSize)
		require.Len(t, report.SwitchPoints, 2)
		assert.Equal(t, "archive", report.SwitchPoints[0].Name)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := run(t, "check", "--config", path, "--yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "switch_points:")
		assert.Contains(t, out, filepath.Join(filepath.Dir(path), "replica.db"))
	})

	t.Run("invalid", func(t *testing.T) {
		bad := writeConfig(t, "databases:\n  main: {driver: sqlite, dsn: main.db}\nswitch_points:\n  main: {readonly: gone}\n")
		_, err := run(t, "check", "--config", bad)
		require.ErrorIs(t, err, types.ErrDatabaseUnknown)
	})
}

func TestRoute(t *testing.T) {
	path := writeConfig(t, testConfig)

	routeOf := func(t *testing.T, args ...string) routeReport {
		t.Helper()
		out, err := run(t, append([]string{"route", "--config", path, "--json"}, args...)...)
		require.NoError(t, err)
		var report routeReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		return report
	}

	def := routeOf(t, "main")
	assert.Equal(t, "readonly", def.Mode)
	assert.Equal(t, types.PhysicalID("main_replica"), def.Target)
	assert.Equal(t, types.DriverSQLite, def.Driver)

	w := routeOf(t, "main", "--mode", "writable", "--connect")
	assert.Equal(t, types.PhysicalID("main"), w.Target)
	assert.True(t, w.Connected)

	named := routeOf(t, "main", "--name", "archive")
	assert.Equal(t, "main", named.SwitchPoint)
	assert.Equal(t, "archive", named.Definition)
	assert.Equal(t, types.PhysicalID("archive"), named.Target)

	_, err := run(t, "route", "--config", path, "main", "--mode", "primary")
	require.ErrorIs(t, err, types.ErrInvalidMode)

	_, err = run(t, "route", "--config", path, "billing")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestPing(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "ping", "--config", path, "--json")
	require.NoError(t, err)
	var results []pingResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.OK, r.Database)
	}

	broken := writeConfig(t, "databases:\n  lost: {driver: sqlite, dsn: missing/dir/lost.db}\n")
	out, err = run(t, "ping", "--config", broken)
	require.Error(t, err)
	var sys sysError
	assert.ErrorAs(t, err, &sys)
	assert.Contains(t, out, "lost")
}

func TestExec(t *testing.T) {
	path := writeConfig(t, testConfig)

	_, err := run(t, "exec", "--config", path, "--writable", "main", "CREATE TABLE notes (body TEXT)")
	require.NoError(t, err)

	out, err := run(t, "exec", "--config", path, "--writable", "main", "INSERT INTO notes (body) VALUES (?)", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows affected on main (writable)")

	_, err = run(t, "exec", "--config", path, "main", "INSERT INTO notes (body) VALUES ('nope')")
	require.ErrorIs(t, err, types.ErrReadonly)

	out, err = run(t, "exec", "--config", path, "--writable", "--json", "main", "SELECT body FROM notes")
	require.NoError(t, err)
	var res execResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "main", res.Target)
	assert.Equal(t, []string{"body"}, res.Columns)
	assert.Equal(t, []map[string]any{{"body": "hello"}}, res.Rows)
}
