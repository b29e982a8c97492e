// Package elfcore decodes and rewrites the structures of a kernel-produced
// ELF core dump: the file header, the program-header table and the leading
// NOTE segment with its file-mapping table and auxiliary vector.
package elfcore

import (
	"encoding/binary"
)

// NoteType represents ELF note types.
type NoteType uint32

// Note types written by the kernel core dumper. debug/elf predates NT_AUXV
// and NT_FILE, so they are declared here.
const (
	NT_PRSTATUS NoteType = 1
	NT_FPREGSET NoteType = 2
	NT_PRPSINFO NoteType = 3
	NT_AUXV     NoteType = 6
	NT_SIGINFO  NoteType = 0x53494749
	NT_FILE     NoteType = 0x46494c45
)

// Record sizes for ELFCLASS64, the only class handled here. An input header
// declaring anything else was produced for a foreign platform.
const (
	EhdrSize = 64
	PhdrSize = 56

	noteHeaderSize = 12
	wordSize       = 8
)

// Core dumps handled here are native: 64-bit little-endian.
var byteOrder = binary.LittleEndian

// Note is one decoded record from a NOTE segment. It borrows its Desc bytes
// from the segment buffer and is only valid while that buffer is.
type Note struct {
	Name string
	Type NoteType
	Desc []byte
}

// FileRange is the [Start,End) virtual address span of one mapping. Lookups
// are exact pair equality; ranges never merge or overlap-match.
type FileRange struct {
	Start uint64
	End   uint64
}

// FileInfo records where a mapped range's bytes live on disk.
type FileInfo struct {
	Offset uint64
	Path   string
}

// FileMappings indexes mapped-file info by address range, as decoded from
// the NT_FILE note. Inserting a duplicate range overwrites (last wins).
type FileMappings map[FileRange]FileInfo
