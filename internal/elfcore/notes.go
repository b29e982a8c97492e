package elfcore

import (
	"bytes"
	"iter"
)

func padUpTo4Bytes(n int) int {
	return (n + 3) &^ 3
}

// DecodeNotes walks a NOTE segment's raw bytes and yields each record in
// order. Every note is a 12-byte header (name size, desc size, type)
// followed by the name and description, each padded to 4 bytes. Iteration
// stops at the end of the buffer or at the first structurally invalid
// record; the sequence is restartable.
func DecodeNotes(raw []byte) iter.Seq[Note] {
	return func(yield func(Note) bool) {
		off := 0
		for off+noteHeaderSize <= len(raw) {
			namesz := int(byteOrder.Uint32(raw[off:]))
			descsz := int(byteOrder.Uint32(raw[off+4:]))
			typ := NoteType(byteOrder.Uint32(raw[off+8:]))
			off += noteHeaderSize

			if namesz < 0 || descsz < 0 || off+padUpTo4Bytes(namesz) > len(raw) {
				return
			}
			name := string(bytes.TrimRight(raw[off:off+namesz], "\x00"))
			off += padUpTo4Bytes(namesz)

			if off+descsz > len(raw) {
				return
			}
			desc := raw[off : off+descsz]
			off += padUpTo4Bytes(descsz)

			if !yield(Note{Name: name, Type: typ, Desc: desc}) {
				return
			}
		}
	}
}

// FindNote returns the description of the first note of the given type, or
// false if the segment holds none.
func FindNote(raw []byte, typ NoteType) ([]byte, bool) {
	for n := range DecodeNotes(raw) {
		if n.Type == typ {
			return n.Desc, true
		}
	}
	return nil, false
}

// NoteWriter builds a NOTE segment image, the encode counterpart of
// DecodeNotes. Production code only decodes; the writer exists for
// assembling synthetic cores in tests.
type NoteWriter struct {
	buf bytes.Buffer
}

// NewNoteWriter creates a new note writer.
func NewNoteWriter() *NoteWriter {
	return &NoteWriter{}
}

// WriteNote appends one note with the standard 4-byte padding.
func (nw *NoteWriter) WriteNote(name string, noteType NoteType, desc []byte) {
	nameSize := padUpTo4Bytes(len(name) + 1) // +1 for null terminator
	descSize := padUpTo4Bytes(len(desc))

	header := make([]byte, noteHeaderSize)
	byteOrder.PutUint32(header[0:4], uint32(len(name)+1))
	byteOrder.PutUint32(header[4:8], uint32(len(desc)))
	byteOrder.PutUint32(header[8:12], uint32(noteType))
	nw.buf.Write(header)

	nw.buf.WriteString(name)
	for range nameSize - len(name) {
		nw.buf.WriteByte(0)
	}

	nw.buf.Write(desc)
	for range descSize - len(desc) {
		nw.buf.WriteByte(0)
	}
}

// Bytes returns the written notes as bytes.
func (nw *NoteWriter) Bytes() []byte {
	return nw.buf.Bytes()
}

// Size returns the total size of written notes.
func (nw *NoteWriter) Size() int {
	return nw.buf.Len()
}
