package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/strata/db"
	"go.hackfix.me/strata/db/migrator"
)

var timeNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func nilLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testApp runs one command per invocation the way cmd/strata does, with the
// filesystem and database connection shared between invocations.
type testApp struct {
	t      *testing.T
	fs     vfs.FileSystem
	db     *db.DB
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	rndName := make([]byte, 8)
	_, err := rand.Read(rndName)
	require.NoError(t, err)

	d, err := db.Open(context.Background(),
		fmt.Sprintf("file:strata-app-%x?mode=memory&cache=shared", rndName),
		func() time.Time { return timeNow })
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return &testApp{
		t: t, fs: memoryfs.New(), db: d,
		stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{},
	}
}

func (ta *testApp) run(args ...string) error {
	ta.t.Helper()
	ta.stdout.Reset()
	ta.stderr.Reset()

	a, err := New("strata", "/config.json",
		WithFS(ta.fs),
		WithDB(ta.db),
		WithFDs(&bytes.Buffer{}, ta.stdout, ta.stderr),
		WithLogger(false, false),
		WithTimeNow(func() time.Time { return timeNow }),
	)
	require.NoError(ta.t, err)

	return a.Run(args)
}

func (ta *testApp) writeMigration(name, content string) {
	ta.t.Helper()
	require.NoError(ta.t, ta.fs.MkdirAll("migrations", 0o755))
	require.NoError(ta.t,
		vfs.WriteFile(ta.fs, "migrations/"+name, []byte(content), 0o644))
}

func TestAppWorkflow(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("init"))
	assert.Contains(t, ta.stdout.String(), "Bookkeeping tables ready in sqlite database")

	ta.writeMigration("0001-users.sql",
		"CREATE TABLE users (id INTEGER PRIMARY KEY);\n-- rollback:\nDROP TABLE users;")
	ta.writeMigration("0002-emails.sql",
		"-- depends: 0001-users\nCREATE TABLE emails (id INTEGER PRIMARY KEY);\n-- rollback:\nDROP TABLE emails;")

	require.NoError(t, ta.run("apply"))
	assert.Contains(t, ta.stdout.String(), "Applied 0001-users")
	assert.Contains(t, ta.stdout.String(), "Applied 0002-emails")

	require.NoError(t, ta.run("apply"))
	assert.Contains(t, ta.stdout.String(), "Nothing to apply")

	require.NoError(t, ta.run("list"))
	assert.Contains(t, ta.stdout.String(), "0001-users")
	assert.Contains(t, ta.stdout.String(), "applied")
	assert.Contains(t, ta.stdout.String(), "2025-01-01T00:00:00Z")

	require.NoError(t, ta.run("rollback"))
	assert.Contains(t, ta.stdout.String(), "Rolled back 0002-emails")

	require.NoError(t, ta.run("ls"))
	assert.Contains(t, ta.stdout.String(), "pending")

	require.NoError(t, ta.run("rollback", "--all"))
	assert.Contains(t, ta.stdout.String(), "Rolled back 0001-users")

	require.NoError(t, ta.run("rollback"))
	assert.Contains(t, ta.stdout.String(), "Nothing to roll back")
}

func TestAppNewScaffold(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("new", "add users table"))
	assert.Contains(t, ta.stdout.String(), "Created migrations/0001-add-users-table.sql")

	require.NoError(t, ta.run("new", "add emails"))
	assert.Contains(t, ta.stdout.String(), "Created migrations/0002-add-emails.sql")

	content, err := vfs.ReadFile(ta.fs, "migrations/0001-add-users-table.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- depends:")
	assert.Contains(t, string(content), "-- rollback:")

	// Scaffolded units parse cleanly and apply as no-ops.
	require.NoError(t, ta.run("apply"))
	assert.Contains(t, ta.stdout.String(), "Applied 0001-add-users-table")
	assert.Contains(t, ta.stdout.String(), "Applied 0002-add-emails")
}

func TestAppLockBreak(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("init"))

	// Simulate a crashed run that left its lock behind.
	lock := migrator.NewLock(ta.db, "_strata_lock", nilLogger())
	require.NoError(t, lock.Acquire(context.Background(), 0, 0))

	ta.writeMigration("0001-users.sql", "CREATE TABLE users (id INTEGER);")

	err := ta.run("apply", "--lock-timeout", "50ms", "--lock-interval", "10ms")
	var lterr migrator.LockTimeoutError
	require.ErrorAs(t, err, &lterr)

	require.NoError(t, ta.run("lock", "break"))
	assert.Contains(t, ta.stdout.String(), "Migration lock removed")

	require.NoError(t, ta.run("apply"))
	assert.Contains(t, ta.stdout.String(), "Applied 0001-users")
}

func TestAppHashMismatch(t *testing.T) {
	ta := newTestApp(t)

	ta.writeMigration("0001-users.sql", "CREATE TABLE users (id INTEGER);")
	require.NoError(t, ta.run("apply"))

	ta.writeMigration("0001-users.sql", "CREATE TABLE users (id INTEGER, name TEXT);")

	err := ta.run("apply")
	var hmerr migrator.HashMismatchError
	require.ErrorAs(t, err, &hmerr)
	assert.Equal(t, "0001-users", hmerr.ID)

	require.NoError(t, ta.run("apply", "--force"))

	require.NoError(t, ta.run("list"))
	assert.Contains(t, ta.stdout.String(), "applied")
}

// mapEnv is an in-memory process environment.
type mapEnv map[string]string

func (e mapEnv) Get(key string) string { return e[key] }

func (e mapEnv) Set(key, value string) error {
	e[key] = value
	return nil
}

func TestAppEnvDSN(t *testing.T) {
	rndName := make([]byte, 8)
	_, err := rand.Read(rndName)
	require.NoError(t, err)
	dsn := fmt.Sprintf("file:strata-env-%x?mode=memory&cache=shared", rndName)

	// Keep a connection open so the in-memory database outlives the app run,
	// and use it to verify the run's effects.
	pin, err := db.Open(context.Background(), dsn, func() time.Time { return timeNow })
	require.NoError(t, err)
	t.Cleanup(func() { _ = pin.Close() })

	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll("migrations", 0o755))
	require.NoError(t, vfs.WriteFile(fs, "migrations/0001-users.sql",
		[]byte("CREATE TABLE users (id INTEGER);"), 0o644))

	stdout := &bytes.Buffer{}
	a, err := New("strata", "/config.json",
		WithFS(fs),
		WithEnv(mapEnv{"STRATA_DSN": dsn}),
		WithFDs(&bytes.Buffer{}, stdout, &bytes.Buffer{}),
		WithLogger(false, false),
		WithTimeNow(func() time.Time { return timeNow }),
	)
	require.NoError(t, err)

	// The connection string is picked up from the environment.
	require.NoError(t, a.Run([]string{"apply"}))
	assert.Contains(t, stdout.String(), "Applied 0001-users")

	tables, err := pin.Backend().ListTables(context.Background(), pin)
	require.NoError(t, err)
	assert.Contains(t, tables, "users")
}

func TestAppInitSave(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("init", "--save", "--lock-timeout", "2m"))
	assert.Contains(t, ta.stdout.String(), "Bookkeeping tables ready")
	assert.Contains(t, ta.stdout.String(), "Configuration saved to /config.json")

	content, err := vfs.ReadFile(ta.fs, "/config.json")
	require.NoError(t, err)
	assert.Contains(t, string(content), `"state_table": "_strata_migration"`)
	assert.Contains(t, string(content), `"timeout": "120s"`)

	// Later runs read the saved values back.
	require.NoError(t, ta.run("init"))
	assert.Contains(t, ta.stdout.String(), "Bookkeeping tables ready")
}

func TestAppNoDSN(t *testing.T) {
	ta := newTestApp(t)
	ta.db = nil

	a, err := New("strata", "/config.json",
		WithFS(ta.fs),
		WithFDs(&bytes.Buffer{}, ta.stdout, ta.stderr),
		WithLogger(false, false),
	)
	require.NoError(t, err)

	err = a.Run([]string{"apply"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database connection string provided")
}
