package elfcore

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/coretrim/coretrim/internal/stream"
)

var (
	// ErrInvalidHeader is returned when the stream does not start with a
	// native-class ELF core header.
	ErrInvalidHeader = errors.New("invalid ELF header")

	// ErrMissingNote is returned when the program-header table is empty or
	// its first entry is not PT_NOTE.
	ErrMissingNote = errors.New("missing NOTE segment")
)

// Kernel NOTE segments are a few KiB of registers, auxv and mapping tables.
// A declared size beyond this is garbage and would otherwise drive a huge
// allocation.
const maxNoteSegmentSize = 64 << 20

// ParseHeaderAndNote reads the ELF header, the full program-header table and
// the raw bytes of the leading NOTE segment from a forward-only core stream.
//
// Kernel core dumps (fs/binfmt_elf.c) are laid out as: ELF header, program
// headers, NOTE segment, then the remaining segments in file order. The
// reader is left positioned just past the NOTE segment.
func ParseHeaderAndNote(r *stream.Reader) (*elf.Header64, []elf.Prog64, []byte, error) {
	buf := make([]byte, EhdrSize)
	if err := r.ReadExact(buf); err != nil {
		return nil, nil, nil, err
	}
	var hdr elf.Header64
	if err := binary.Read(bytes.NewReader(buf), byteOrder, &hdr); err != nil {
		return nil, nil, nil, errors.Wrap(err, "decode ELF header")
	}
	if string(hdr.Ident[:len(elf.ELFMAG)]) != elf.ELFMAG ||
		hdr.Ident[elf.EI_CLASS] != byte(elf.ELFCLASS64) ||
		hdr.Ident[elf.EI_DATA] != byte(elf.ELFDATA2LSB) ||
		hdr.Version != uint32(elf.EV_CURRENT) ||
		hdr.Type != uint16(elf.ET_CORE) ||
		hdr.Ehsize != EhdrSize ||
		hdr.Phentsize != PhdrSize {
		return nil, nil, nil, ErrInvalidHeader
	}

	if err := r.SkipTo(hdr.Phoff); err != nil {
		return nil, nil, nil, err
	}
	pbuf := make([]byte, int(hdr.Phnum)*PhdrSize)
	if err := r.ReadExact(pbuf); err != nil {
		return nil, nil, nil, err
	}
	phdrs := make([]elf.Prog64, hdr.Phnum)
	if err := binary.Read(bytes.NewReader(pbuf), byteOrder, phdrs); err != nil {
		return nil, nil, nil, errors.Wrap(err, "decode program headers")
	}

	// The kernel always emits the NOTE segment first.
	if len(phdrs) == 0 || elf.ProgType(phdrs[0].Type) != elf.PT_NOTE {
		return nil, nil, nil, ErrMissingNote
	}
	notePhdr := phdrs[0]
	if notePhdr.Filesz > maxNoteSegmentSize {
		return nil, nil, nil, errors.Wrapf(ErrMalformedNote, "NOTE segment size %d", notePhdr.Filesz)
	}
	if err := r.SkipTo(notePhdr.Off); err != nil {
		return nil, nil, nil, err
	}
	noteBuf := make([]byte, notePhdr.Filesz)
	if err := r.ReadExact(noteBuf); err != nil {
		return nil, nil, nil, err
	}
	return &hdr, phdrs, noteBuf, nil
}
