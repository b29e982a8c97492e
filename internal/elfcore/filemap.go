package elfcore

import (
	"bytes"

	"github.com/pkg/errors"
)

var (
	// ErrNoteNotFound is returned when a note the rewrite depends on
	// (NT_FILE, NT_AUXV) is absent from the NOTE segment.
	ErrNoteNotFound = errors.New("required note not found")

	// ErrMalformedNote is returned when a located note's description does
	// not decode.
	ErrMalformedNote = errors.New("malformed note")
)

// ExtractFileMappings decodes the kernel's NT_FILE note into a FileMappings
// index.
//
// NT_FILE note format (see the kernel's fs/binfmt_elf.c):
//
//	count, page size               2 machine words
//	start, end, offset-in-pages    3 machine words per file
//	path strings                   count null-terminated strings
func ExtractFileMappings(noteBuf []byte) (FileMappings, error) {
	desc, ok := FindNote(noteBuf, NT_FILE)
	if !ok {
		return nil, errors.Wrap(ErrNoteNotFound, "NT_FILE")
	}

	word := func(i uint64) uint64 {
		return byteOrder.Uint64(desc[i*wordSize:])
	}
	if len(desc) < 2*wordSize {
		return nil, errors.Wrap(ErrMalformedNote, "NT_FILE header")
	}
	count := word(0)
	pageSize := word(1)
	if count > uint64(len(desc))/(3*wordSize) {
		return nil, errors.Wrapf(ErrMalformedNote, "NT_FILE count %d exceeds note size", count)
	}
	tableEnd := (2 + 3*count) * wordSize
	if tableEnd > uint64(len(desc)) {
		return nil, errors.Wrapf(ErrMalformedNote, "NT_FILE table truncated at entry count %d", count)
	}

	mappings := make(FileMappings, count)
	paths := desc[tableEnd:]
	for i := uint64(0); i < count; i++ {
		start := word(2 + 3*i)
		end := word(2 + 3*i + 1)
		offsetPages := word(2 + 3*i + 2)

		nul := bytes.IndexByte(paths, 0)
		if nul < 0 {
			return nil, errors.Wrapf(ErrMalformedNote, "NT_FILE path %d unterminated", i)
		}
		// Duplicate ranges overwrite: last table entry wins.
		mappings[FileRange{Start: start, End: end}] = FileInfo{
			Offset: offsetPages * pageSize,
			Path:   string(paths[:nul]),
		}
		paths = paths[nul+1:]
	}
	return mappings, nil
}

// ExtractAuxv returns the raw NT_AUXV description. The kernel uses the same
// encoding for /proc/<pid>/auxv, so the bytes need no further decoding.
func ExtractAuxv(noteBuf []byte) ([]byte, error) {
	desc, ok := FindNote(noteBuf, NT_AUXV)
	if !ok {
		return nil, errors.Wrap(ErrNoteNotFound, "NT_AUXV")
	}
	return desc, nil
}
