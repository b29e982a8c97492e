package elfcore

import (
	"debug/elf"
)

// FilterSegments copies the program-header table, dropping the file bytes of
// every LOAD segment whose exact address range is backed by a mapped file
// (those bytes are reconstructable from the file and useless to the minidump
// generator), and lays the result out at new offsets.
//
// Entry 0 is the NOTE segment and is copied verbatim. Each later offset is
// the previous entry's offset plus file size, rounded up to the entry's
// alignment; a single left-to-right pass, matching the append-only layout
// the kernel produced.
func FilterSegments(phdrs []elf.Prog64, mappings FileMappings) []elf.Prog64 {
	filtered := make([]elf.Prog64, len(phdrs))
	filtered[0] = phdrs[0]

	for i := 1; i < len(phdrs); i++ {
		ph := phdrs[i]
		if elf.ProgType(ph.Type) == elf.PT_LOAD {
			if _, ok := mappings[FileRange{Start: ph.Vaddr, End: ph.Vaddr + ph.Memsz}]; ok {
				ph.Filesz = 0
			}
		}
		prev := filtered[i-1]
		ph.Off = prev.Off + prev.Filesz
		if ph.Align != 0 && ph.Off%ph.Align != 0 {
			ph.Off += ph.Align - ph.Off%ph.Align
		}
		filtered[i] = ph
	}
	return filtered
}
