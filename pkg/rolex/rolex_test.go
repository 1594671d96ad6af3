package rolex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("accepts canonical and lower-case forms", func(t *testing.T) {
		r, err := Parse("OWNER")
		require.NoError(t, err)
		require.Equal(t, Owner, r)

		r, err = Parse(" employee ")
		require.NoError(t, err)
		require.Equal(t, Employee, r)
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		_, err := Parse("SUPERUSER")
		require.ErrorIs(t, err, ErrUnknownRole)

		_, err = Parse("")
		require.ErrorIs(t, err, ErrUnknownRole)
	})
}

func TestLevelOrdering(t *testing.T) {
	t.Parallel()

	all := All()
	for i := 1; i < len(all); i++ {
		require.Greater(t, all[i].Level(), all[i-1].Level(),
			"roles must be strictly ordered: %s vs %s", all[i-1], all[i])
	}
	require.Zero(t, Role("GUEST").Level())
}

func TestHasPermission(t *testing.T) {
	t.Parallel()

	t.Run("higher role satisfies lower requirement", func(t *testing.T) {
		require.True(t, HasPermission(Owner, Employee))
		require.True(t, HasPermission(Administrator, Employee))
	})

	t.Run("lower role fails higher requirement", func(t *testing.T) {
		require.False(t, HasPermission(Employee, Owner))
		require.False(t, HasPermission(Employee, Administrator))
	})

	t.Run("minimum of required levels is the bar", func(t *testing.T) {
		require.True(t, HasPermission(Administrator, Owner, Employee))
		require.False(t, HasPermission(Employee, Owner, Administrator))
	})

	t.Run("empty requirement passes trivially", func(t *testing.T) {
		require.True(t, HasPermission(Employee))
	})

	t.Run("unknown actual role never passes", func(t *testing.T) {
		require.False(t, HasPermission(Role("GUEST"), Employee))
	})

	t.Run("unknown required roles are skipped", func(t *testing.T) {
		require.True(t, HasPermission(Administrator, Role("GUEST"), Administrator))
		require.False(t, HasPermission(Employee, Role("GUEST"), Administrator))
	})

	t.Run("requirement of only unknown roles fails closed", func(t *testing.T) {
		require.False(t, HasPermission(Owner, Role("GUEST")))
		require.False(t, HasPermission(Owner, Role("GUEST"), Role("ROOT")))
	})
}
