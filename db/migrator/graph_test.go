package migrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mig(id string, depends ...string) *Migration {
	return &Migration{ID: id, Depends: depends}
}

func ids(migrations []*Migration) []string {
	out := make([]string, len(migrations))
	for i, m := range migrations {
		out[i] = m.ID
	}
	return out
}

func TestResolveOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		migrations []*Migration
		expOrder   []string
		expErr     string
	}{
		{
			name:       "ok/no_dependencies_sorted_by_id",
			migrations: []*Migration{mig("c"), mig("a"), mig("b")},
			expOrder:   []string{"a", "b", "c"},
		},
		{
			name: "ok/lexical_tie_break",
			// B and C both depend on A and have no constraint between them.
			migrations: []*Migration{mig("0003-c", "0001-a"), mig("0002-b", "0001-a"), mig("0001-a")},
			expOrder:   []string{"0001-a", "0002-b", "0003-c"},
		},
		{
			name: "ok/dependency_overrides_id_order",
			// a depends on z, so z must come first despite sorting after m.
			migrations: []*Migration{mig("a", "z"), mig("m"), mig("z")},
			expOrder:   []string{"m", "z", "a"},
		},
		{
			name: "ok/chain",
			migrations: []*Migration{
				mig("0004-d", "0003-c"), mig("0003-c", "0002-b"),
				mig("0002-b", "0001-a"), mig("0001-a"),
			},
			expOrder: []string{"0001-a", "0002-b", "0003-c", "0004-d"},
		},
		{
			name:       "err/unknown_dependency",
			migrations: []*Migration{mig("a", "ghost")},
			expErr:     "depends on unknown migration 'ghost'",
		},
		{
			name:       "err/cycle",
			migrations: []*Migration{mig("a", "b"), mig("b", "c"), mig("c", "a")},
			expErr:     "migration dependency cycle",
		},
		{
			name:       "err/self_cycle",
			migrations: []*Migration{mig("a", "a")},
			expErr:     "migration dependency cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			order, err := resolveOrder(tt.migrations)
			if tt.expErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expOrder, ids(order))

			// Stable across repeated runs.
			again, err := resolveOrder(tt.migrations)
			require.NoError(t, err)
			assert.Equal(t, ids(order), ids(again))
		})
	}
}

func TestResolveOrderCyclePath(t *testing.T) {
	t.Parallel()

	_, err := resolveOrder([]*Migration{mig("a", "b"), mig("b", "a"), mig("c")})
	var cerr CycleError
	require.ErrorAs(t, err, &cerr)
	// The reported path starts and ends on the same migration.
	assert.GreaterOrEqual(t, len(cerr.Cycle), 3)
	assert.Equal(t, cerr.Cycle[0], cerr.Cycle[len(cerr.Cycle)-1])
}

func TestToApply(t *testing.T) {
	t.Parallel()

	all := []*Migration{mig("0001-a"), mig("0002-b", "0001-a"), mig("0003-c", "0001-a")}
	applied := map[string]AppliedRecord{"0001-a": {ID: "0001-a"}}

	pending, err := toApply(all, applied)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002-b", "0003-c"}, ids(pending))

	// Nothing applied: the full set, in order.
	pending, err = toApply(all, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001-a", "0002-b", "0003-c"}, ids(pending))

	// Everything applied: empty.
	applied["0002-b"] = AppliedRecord{ID: "0002-b"}
	applied["0003-c"] = AppliedRecord{ID: "0003-c"}
	pending, err = toApply(all, applied)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestToRollback(t *testing.T) {
	t.Parallel()

	all := []*Migration{mig("0001-a"), mig("0002-b", "0001-a"), mig("0003-c", "0001-a")}
	applied := map[string]AppliedRecord{
		"0001-a": {ID: "0001-a"},
		"0002-b": {ID: "0002-b"},
		"0003-c": {ID: "0003-c"},
	}

	tests := []struct {
		name     string
		limit    int
		expOrder []string
	}{
		{name: "most_recent_one", limit: 1, expOrder: []string{"0003-c"}},
		{name: "most_recent_two", limit: 2, expOrder: []string{"0003-c", "0002-b"}},
		{name: "all_negative_limit", limit: -1, expOrder: []string{"0003-c", "0002-b", "0001-a"}},
		{name: "limit_exceeds_applied", limit: 10, expOrder: []string{"0003-c", "0002-b", "0001-a"}},
		{name: "zero_limit", limit: 0, expOrder: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			selected, err := toRollback(all, applied, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.expOrder, ids(selected))
		})
	}
}
