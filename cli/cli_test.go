package cli

import (
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/strata/app/config"
)

func newParsedCLI(t *testing.T, args ...string) *CLI {
	t.Helper()

	c, err := New("/config.json", "test")
	require.NoError(t, err)
	require.NoError(t, c.Parse(args))

	return c
}

func newDefaultConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.NewConfig(memoryfs.New(), "/config.json")
	require.NoError(t, cfg.Load())
	cfg.SetDefaults()

	return cfg
}

func TestMergeConfig(t *testing.T) {
	t.Parallel()

	t.Run("unset flags keep config values", func(t *testing.T) {
		t.Parallel()
		c := newParsedCLI(t, "apply")
		cfg := newDefaultConfig(t)

		c.MergeConfig(cfg)

		assert.False(t, cfg.Database.DSN.Valid)
		assert.Equal(t, "migrations", cfg.Migrations.Dir.V)
		assert.Equal(t, 30*time.Second, cfg.Lock.Timeout.V)
		assert.Equal(t, 500*time.Millisecond, cfg.Lock.PollInterval.V)
	})

	t.Run("flags win over config values", func(t *testing.T) {
		t.Parallel()
		c := newParsedCLI(t, "apply",
			"--dsn", "sqlite://data.db",
			"--migrations-dir", "db/migrations",
			"--lock-timeout", "2m",
			"--lock-interval", "1s",
		)
		cfg := newDefaultConfig(t)

		c.MergeConfig(cfg)

		assert.Equal(t, "sqlite://data.db", cfg.Database.DSN.V)
		assert.Equal(t, "db/migrations", cfg.Migrations.Dir.V)
		assert.Equal(t, 2*time.Minute, cfg.Lock.Timeout.V)
		assert.Equal(t, time.Second, cfg.Lock.PollInterval.V)
	})

	t.Run("explicit zero timeout overrides default", func(t *testing.T) {
		t.Parallel()
		c := newParsedCLI(t, "apply", "--lock-timeout", "0s")
		cfg := newDefaultConfig(t)

		c.MergeConfig(cfg)

		// A zero timeout requests a single lock acquisition attempt, which
		// must be expressible from the command line despite the non-zero
		// configuration default.
		assert.True(t, cfg.Lock.Timeout.Valid)
		assert.Equal(t, time.Duration(0), cfg.Lock.Timeout.V)
	})
}
