package coretrim

import (
	"bufio"
	"debug/elf"

	"github.com/pkg/errors"

	"github.com/coretrim/coretrim/internal/elfcore"
	"github.com/coretrim/coretrim/internal/procfs"
)

// writeAuxv writes the NT_AUXV description verbatim. The kernel uses the
// same encoding for /proc/<pid>/auxv, so the file is a drop-in replica.
func writeAuxv(auxv []byte, path string) error {
	f, err := createExcl(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(auxv); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

// writeMaps emits one maps-format line per original LOAD header. The offset
// and path come from the NT_FILE index when the segment's address range is
// mapped; sharing mode, device and inode are not recoverable from a core
// dump and are reported as private, 00:00 and 0.
func writeMaps(phdrs []elf.Prog64, mappings elfcore.FileMappings, path string) error {
	f, err := createExcl(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for _, ph := range phdrs {
		if elf.ProgType(ph.Type) != elf.PT_LOAD {
			continue
		}
		info := mappings[elfcore.FileRange{Start: ph.Vaddr, End: ph.Vaddr + ph.Memsz}]
		m := procfs.Mapping{
			Start:  ph.Vaddr,
			End:    ph.Vaddr + ph.Memsz,
			Perms:  permsFromFlags(elf.ProgFlag(ph.Flags)),
			Offset: info.Offset,
			Path:   info.Path,
		}
		bw.WriteString(m.String())
		if err := bw.WriteByte('\n'); err != nil {
			f.Close()
			return errors.Wrapf(err, "write %s", path)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

func permsFromFlags(flags elf.ProgFlag) procfs.Perm {
	var p procfs.Perm
	if flags&elf.PF_R != 0 {
		p |= procfs.PermRead
	}
	if flags&elf.PF_W != 0 {
		p |= procfs.PermWrite
	}
	if flags&elf.PF_X != 0 {
		p |= procfs.PermExec
	}
	return p
}
