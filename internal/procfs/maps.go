// Package procfs renders and parses the textual line format of the kernel's
// /proc/<pid>/maps file. The rewrite engine emits a maps file reconstructed
// from the core dump; downstream tooling (and the tests here) read it back.
package procfs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Perm represents memory permissions.
type Perm uint8

const (
	PermRead  Perm = 1 << 0
	PermWrite Perm = 1 << 1
	PermExec  Perm = 1 << 2
)

// Mapping is one line of a maps file.
type Mapping struct {
	Start    uint64
	End      uint64
	Perms    Perm
	Shared   bool
	Offset   uint64
	DevMajor uint64
	DevMinor uint64
	Inode    uint64
	Path     string
}

// String renders the mapping in the kernel's maps layout:
//
//	%08x-%08x %c%c%c%c %08x %02x:%02x %d %s
func (m Mapping) String() string {
	perm := func(p Perm, c byte) byte {
		if m.Perms&p != 0 {
			return c
		}
		return '-'
	}
	share := byte('p')
	if m.Shared {
		share = 's'
	}
	return fmt.Sprintf("%08x-%08x %c%c%c%c %08x %02x:%02x %d %s",
		m.Start, m.End,
		perm(PermRead, 'r'), perm(PermWrite, 'w'), perm(PermExec, 'x'), share,
		m.Offset, m.DevMajor, m.DevMinor, m.Inode, m.Path)
}

// ParseLine parses a single maps-format line.
func ParseLine(line string) (Mapping, error) {
	parts := strings.Fields(line)
	if len(parts) < 5 {
		return Mapping{}, errors.Errorf("invalid maps line: %s", line)
	}

	addrParts := strings.Split(parts[0], "-")
	if len(addrParts) != 2 {
		return Mapping{}, errors.Errorf("invalid address range: %s", parts[0])
	}
	start, err := strconv.ParseUint(addrParts[0], 16, 64)
	if err != nil {
		return Mapping{}, errors.Wrap(err, "invalid start address")
	}
	end, err := strconv.ParseUint(addrParts[1], 16, 64)
	if err != nil {
		return Mapping{}, errors.Wrap(err, "invalid end address")
	}

	perms := parts[1]
	var permFlags Perm
	if strings.Contains(perms, "r") {
		permFlags |= PermRead
	}
	if strings.Contains(perms, "w") {
		permFlags |= PermWrite
	}
	if strings.Contains(perms, "x") {
		permFlags |= PermExec
	}
	shared := strings.Contains(perms, "s")

	offset, err := strconv.ParseUint(parts[2], 16, 64)
	if err != nil {
		return Mapping{}, errors.Wrap(err, "invalid offset")
	}

	devParts := strings.Split(parts[3], ":")
	if len(devParts) != 2 {
		return Mapping{}, errors.Errorf("invalid device: %s", parts[3])
	}
	major, err := strconv.ParseUint(devParts[0], 16, 64)
	if err != nil {
		return Mapping{}, errors.Wrap(err, "invalid major device")
	}
	minor, err := strconv.ParseUint(devParts[1], 16, 64)
	if err != nil {
		return Mapping{}, errors.Wrap(err, "invalid minor device")
	}

	inode, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		return Mapping{}, errors.Wrap(err, "invalid inode")
	}

	var path string
	if len(parts) > 5 {
		path = strings.Join(parts[5:], " ")
	}

	return Mapping{
		Start:    start,
		End:      end,
		Perms:    permFlags,
		Shared:   shared,
		Offset:   offset,
		DevMajor: major,
		DevMinor: minor,
		Inode:    inode,
		Path:     path,
	}, nil
}
