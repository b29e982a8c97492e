package budget

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func withStatfs(t *testing.T, fn func(path string, st *unix.Statfs_t) error) {
	t.Helper()
	orig := statfs
	statfs = fn
	t.Cleanup(func() { statfs = orig })
}

func TestLimitFractionOfFreeSpace(t *testing.T) {
	withStatfs(t, func(path string, st *unix.Statfs_t) error {
		st.Bavail = 1000
		st.Bsize = 4096
		return nil
	})

	limit, err := Limit("/var/crash/core.trimmed")
	require.NoError(t, err)
	require.Equal(t, uint64(1000*4096/20), limit)
}

func TestLimitCapped(t *testing.T) {
	withStatfs(t, func(path string, st *unix.Statfs_t) error {
		// Plenty of free space; the absolute ceiling applies.
		st.Bavail = 1 << 32
		st.Bsize = 4096
		return nil
	})

	limit, err := Limit("/var/crash/core.trimmed")
	require.NoError(t, err)
	require.Equal(t, uint64(MaxCoreSize), limit)
}

func TestLimitQueriesParentDir(t *testing.T) {
	var queried string
	withStatfs(t, func(path string, st *unix.Statfs_t) error {
		queried = path
		return nil
	})

	_, err := Limit("/var/crash/core.trimmed")
	require.NoError(t, err)
	require.Equal(t, "/var/crash", queried)
}

func TestLimitRetriesEINTR(t *testing.T) {
	calls := 0
	withStatfs(t, func(path string, st *unix.Statfs_t) error {
		calls++
		if calls == 1 {
			return unix.EINTR
		}
		st.Bavail = 100
		st.Bsize = 512
		return nil
	})

	limit, err := Limit("/tmp/core")
	require.NoError(t, err)
	require.Equal(t, uint64(100*512/20), limit)
	require.Equal(t, 2, calls)
}

func TestLimitStatfsError(t *testing.T) {
	withStatfs(t, func(path string, st *unix.Statfs_t) error {
		return unix.EACCES
	})

	_, err := Limit("/tmp/core")
	require.ErrorIs(t, err, unix.EACCES)
}
