package elfcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoteRoundTrip(t *testing.T) {
	nw := NewNoteWriter()
	nw.WriteNote("CORE", NT_PRSTATUS, []byte{1, 2, 3, 4, 5})
	nw.WriteNote("CORE", NT_AUXV, []byte("auxv-bytes"))
	nw.WriteNote("LINUX", NT_FILE, nil)

	var notes []Note
	for n := range DecodeNotes(nw.Bytes()) {
		notes = append(notes, n)
	}
	require.Len(t, notes, 3)

	require.Equal(t, "CORE", notes[0].Name)
	require.Equal(t, NT_PRSTATUS, notes[0].Type)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, notes[0].Desc)

	require.Equal(t, NT_AUXV, notes[1].Type)
	require.Equal(t, []byte("auxv-bytes"), notes[1].Desc)

	require.Equal(t, "LINUX", notes[2].Name)
	require.Empty(t, notes[2].Desc)
}

func TestDecodeNotesRestartable(t *testing.T) {
	nw := NewNoteWriter()
	nw.WriteNote("CORE", NT_PRSTATUS, []byte{1})
	nw.WriteNote("CORE", NT_AUXV, []byte{2})
	seq := DecodeNotes(nw.Bytes())

	for range 2 {
		count := 0
		for range seq {
			count++
		}
		require.Equal(t, 2, count)
	}
}

func TestDecodeNotesStopsOnTruncatedRecord(t *testing.T) {
	nw := NewNoteWriter()
	nw.WriteNote("CORE", NT_PRSTATUS, []byte{1, 2, 3, 4})
	nw.WriteNote("CORE", NT_AUXV, []byte{5, 6, 7, 8})
	raw := nw.Bytes()

	// Cut into the middle of the second note's description.
	var notes []Note
	for n := range DecodeNotes(raw[:len(raw)-2]) {
		notes = append(notes, n)
	}
	require.Len(t, notes, 1)
	require.Equal(t, NT_PRSTATUS, notes[0].Type)
}

func TestDecodeNotesIgnoresTrailingPadding(t *testing.T) {
	nw := NewNoteWriter()
	nw.WriteNote("CORE", NT_AUXV, []byte{1, 2, 3})
	raw := append(nw.Bytes(), 0, 0, 0)

	count := 0
	for range DecodeNotes(raw) {
		count++
	}
	require.Equal(t, 1, count)
}

func TestFindNote(t *testing.T) {
	nw := NewNoteWriter()
	nw.WriteNote("CORE", NT_PRSTATUS, []byte{9})
	nw.WriteNote("CORE", NT_AUXV, []byte("first"))
	nw.WriteNote("CORE", NT_AUXV, []byte("second"))

	desc, ok := FindNote(nw.Bytes(), NT_AUXV)
	require.True(t, ok)
	require.Equal(t, []byte("first"), desc)

	_, ok = FindNote(nw.Bytes(), NT_FILE)
	require.False(t, ok)
}
