package elfcore

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coretrim/coretrim/internal/stream"
)

func buildSmallCore() []byte {
	return NewCoreBuilder().
		AddNote("CORE", NT_PRSTATUS, make([]byte, 336)).
		AddNote("CORE", NT_AUXV, []byte("auxv")).
		AddFileNote(4096, []FileNoteEntry{
			{Range: FileRange{Start: 0x400000, End: 0x401000}, OffsetPages: 0, Path: "/bin/true"},
		}).
		AddLoad(0x400000, elf.PF_R|elf.PF_X, bytes.Repeat([]byte{0xaa}, 0x1000), 0x1000, 0x1000).
		AddLoad(0x601000, elf.PF_R|elf.PF_W, bytes.Repeat([]byte{0xbb}, 0x2000), 0x2000, 0x1000).
		Build()
}

func TestParseHeaderAndNote(t *testing.T) {
	core := buildSmallCore()
	r := stream.New(bytes.NewReader(core))

	hdr, phdrs, noteBuf, err := ParseHeaderAndNote(r)
	require.NoError(t, err)

	require.Equal(t, uint16(elf.ET_CORE), hdr.Type)
	require.Equal(t, uint16(3), hdr.Phnum)
	require.Len(t, phdrs, 3)
	require.Equal(t, elf.PT_NOTE, elf.ProgType(phdrs[0].Type))
	require.Equal(t, elf.PT_LOAD, elf.ProgType(phdrs[1].Type))
	require.Equal(t, uint64(0x400000), phdrs[1].Vaddr)

	// The reader stops right past the NOTE segment.
	require.Equal(t, phdrs[0].Off+phdrs[0].Filesz, r.Consumed())

	// The NOTE bytes decode back to the notes that went in.
	auxv, ok := FindNote(noteBuf, NT_AUXV)
	require.True(t, ok)
	require.Equal(t, []byte("auxv"), auxv)
}

func TestParseHeaderRejectsCorruptMagic(t *testing.T) {
	core := buildSmallCore()
	core[0] = 0x00

	_, _, _, err := ParseHeaderAndNote(stream.New(bytes.NewReader(core)))
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestParseHeaderRejectsWrongClass(t *testing.T) {
	core := buildSmallCore()
	core[elf.EI_CLASS] = byte(elf.ELFCLASS32)

	_, _, _, err := ParseHeaderAndNote(stream.New(bytes.NewReader(core)))
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestParseHeaderRejectsNonCore(t *testing.T) {
	core := buildSmallCore()
	byteOrder.PutUint16(core[16:], uint16(elf.ET_EXEC))

	_, _, _, err := ParseHeaderAndNote(stream.New(bytes.NewReader(core)))
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestParseHeaderRejectsNonNoteFirstSegment(t *testing.T) {
	core := buildSmallCore()
	// First program header starts right after the ELF header; flip its
	// type to PT_LOAD.
	byteOrder.PutUint32(core[EhdrSize:], uint32(elf.PT_LOAD))

	_, _, _, err := ParseHeaderAndNote(stream.New(bytes.NewReader(core)))
	require.ErrorIs(t, err, ErrMissingNote)
}

func TestParseHeaderRejectsEmptyHeaderTable(t *testing.T) {
	core := buildSmallCore()
	byteOrder.PutUint16(core[56:], 0) // e_phnum

	_, _, _, err := ParseHeaderAndNote(stream.New(bytes.NewReader(core)))
	require.ErrorIs(t, err, ErrMissingNote)
}

func TestParseHeaderTruncatedStream(t *testing.T) {
	core := buildSmallCore()

	_, _, _, err := ParseHeaderAndNote(stream.New(bytes.NewReader(core[:EhdrSize+20])))
	require.ErrorIs(t, err, stream.ErrTruncated)
}
