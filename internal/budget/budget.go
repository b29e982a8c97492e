// Package budget derives the maximum permitted size of a trimmed core from
// the free space of the destination filesystem.
package budget

import (
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MaxCoreSize is the absolute ceiling on a trimmed core, regardless of how
// much disk is free.
const MaxCoreSize = 256 * 1024 * 1024

// Only a twentieth of the free space may be spent on one core; the rest
// stays available to the system.
const freeSpaceFraction = 20

// Swapped out in tests.
var statfs = unix.Statfs

// Limit computes the byte budget for a core written to destPath. The path
// does not exist yet, so free space is queried on its parent directory.
func Limit(destPath string) (uint64, error) {
	dir := filepath.Dir(destPath)
	var st unix.Statfs_t
	for {
		err := statfs(dir, &st)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, errors.Wrapf(err, "statfs %s", dir)
		}
		break
	}
	free := st.Bavail * uint64(st.Bsize)
	return min(free/freeSpaceFraction, MaxCoreSize), nil
}
