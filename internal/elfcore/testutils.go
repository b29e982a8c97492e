package elfcore

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// CoreBuilder assembles a synthetic kernel-style core image: ELF header,
// program headers, NOTE segment first, then LOAD segments at aligned
// offsets. Used by tests across the repo to fabricate input streams.
type CoreBuilder struct {
	notes *NoteWriter
	loads []builderLoad
}

type builderLoad struct {
	vaddr uint64
	flags elf.ProgFlag
	data  []byte
	memsz uint64
	align uint64
}

// FileNoteEntry describes one mapping in a synthetic NT_FILE note.
type FileNoteEntry struct {
	Range       FileRange
	OffsetPages uint64
	Path        string
}

// NewCoreBuilder creates an empty builder.
func NewCoreBuilder() *CoreBuilder {
	return &CoreBuilder{notes: NewNoteWriter()}
}

// AddNote appends a note to the NOTE segment.
func (b *CoreBuilder) AddNote(name string, typ NoteType, desc []byte) *CoreBuilder {
	b.notes.WriteNote(name, typ, desc)
	return b
}

// AddFileNote appends an NT_FILE note built from entries, encoded the way
// the kernel encodes it.
func (b *CoreBuilder) AddFileNote(pageSize uint64, entries []FileNoteEntry) *CoreBuilder {
	var desc bytes.Buffer
	writeWord := func(v uint64) {
		var w [wordSize]byte
		byteOrder.PutUint64(w[:], v)
		desc.Write(w[:])
	}
	writeWord(uint64(len(entries)))
	writeWord(pageSize)
	for _, e := range entries {
		writeWord(e.Range.Start)
		writeWord(e.Range.End)
		writeWord(e.OffsetPages)
	}
	for _, e := range entries {
		desc.WriteString(e.Path)
		desc.WriteByte(0)
	}
	return b.AddNote("CORE", NT_FILE, desc.Bytes())
}

// AddLoad appends a LOAD segment whose file content is data and whose
// in-memory size is memsz (>= len(data)).
func (b *CoreBuilder) AddLoad(vaddr uint64, flags elf.ProgFlag, data []byte, memsz uint64, align uint64) *CoreBuilder {
	b.loads = append(b.loads, builderLoad{
		vaddr: vaddr,
		flags: flags,
		data:  data,
		memsz: memsz,
		align: align,
	})
	return b
}

// Build lays out and serializes the core image.
func (b *CoreBuilder) Build() []byte {
	noteBytes := b.notes.Bytes()
	phnum := 1 + len(b.loads)

	phdrs := make([]elf.Prog64, 0, phnum)
	off := uint64(EhdrSize + phnum*PhdrSize)
	phdrs = append(phdrs, elf.Prog64{
		Type:   uint32(elf.PT_NOTE),
		Flags:  uint32(elf.PF_R),
		Off:    off,
		Filesz: uint64(len(noteBytes)),
		Memsz:  uint64(len(noteBytes)),
	})
	off += uint64(len(noteBytes))
	for _, l := range b.loads {
		if l.align != 0 && off%l.align != 0 {
			off += l.align - off%l.align
		}
		phdrs = append(phdrs, elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(l.flags),
			Off:    off,
			Vaddr:  l.vaddr,
			Paddr:  l.vaddr,
			Filesz: uint64(len(l.data)),
			Memsz:  l.memsz,
			Align:  l.align,
		})
		off += uint64(len(l.data))
	}

	hdr := elf.Header64{
		Type:      uint16(elf.ET_CORE),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     EhdrSize,
		Ehsize:    EhdrSize,
		Phentsize: PhdrSize,
		Phnum:     uint16(phnum),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var out bytes.Buffer
	binary.Write(&out, byteOrder, &hdr)
	binary.Write(&out, byteOrder, phdrs)
	padTo := func(target uint64) {
		for uint64(out.Len()) < target {
			out.WriteByte(0)
		}
	}
	padTo(phdrs[0].Off)
	out.Write(noteBytes)
	for i, l := range b.loads {
		padTo(phdrs[1+i].Off)
		out.Write(l.data)
	}
	return out.Bytes()
}
