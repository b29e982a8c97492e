// Package coretrim rewrites a kernel-produced ELF core dump, read once from
// a forward-only stream, into a trimmed core file suitable for minidump
// generation, plus auxv and maps files replicating the crashed process's
// /proc entries.
package coretrim

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/coretrim/coretrim/internal/budget"
	"github.com/coretrim/coretrim/internal/elfcore"
	"github.com/coretrim/coretrim/internal/stream"
)

var (
	// ErrSizeLimit is returned when the predicted output size exceeds the
	// computed budget. Nothing has been written to the destination when it
	// is returned.
	ErrSizeLimit = errors.New("coredump exceeds size limit")

	// ErrOutputExists is returned when an output path already exists; no
	// pre-existing file is ever overwritten.
	ErrOutputExists = errors.New("output file already exists")
)

var byteOrder = binary.LittleEndian

// CoredumpWriter consumes one kernel core stream and produces the trimmed
// core plus the proc files. It is single-use: one stream, one run.
type CoredumpWriter struct {
	src      *stream.Reader
	destPath string
	procDir  string
	logger   log.Logger

	limitFn func(string) (uint64, error)
}

// NewCoredumpWriter creates a writer that reads the core dump from src and
// writes the trimmed core to destPath and the auxv/maps files into procDir.
// destPath and the two proc files must not already exist. A nil logger
// disables logging.
func NewCoredumpWriter(src io.Reader, destPath, procDir string, logger log.Logger) *CoredumpWriter {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &CoredumpWriter{
		src:      stream.New(src),
		destPath: destPath,
		procDir:  procDir,
		logger:   logger,
		limitFn:  budget.Limit,
	}
}

// SetSizeLimit replaces the free-space-derived size budget with a fixed cap.
func (w *CoredumpWriter) SetSizeLimit(n uint64) {
	w.limitFn = func(string) (uint64, error) { return n, nil }
}

// WriteCoredump runs the whole rewrite and returns the trimmed core's size.
//
// The input stream is consumed strictly forward. On any failure the
// destination file is removed if it was created; the auxv and maps files are
// written before the destination and are deliberately not rolled back,
// matching the collector this feeds.
func (w *CoredumpWriter) WriteCoredump() (uint64, error) {
	hdr, phdrs, noteBuf, err := elfcore.ParseHeaderAndNote(w.src)
	if err != nil {
		level.Error(w.logger).Log("msg", "failed to parse core header", "err", err)
		return 0, err
	}
	mappings, err := elfcore.ExtractFileMappings(noteBuf)
	if err != nil {
		level.Error(w.logger).Log("msg", "failed to decode NT_FILE", "err", err)
		return 0, err
	}
	filtered := elfcore.FilterSegments(phdrs, mappings)

	limit, err := w.limitFn(w.destPath)
	if err != nil {
		return 0, err
	}
	last := filtered[len(filtered)-1]
	expected := last.Off + last.Filesz
	level.Debug(w.logger).Log("msg", "computed layout",
		"segments", len(filtered), "mapped_files", len(mappings),
		"expected_size", expected, "limit", limit)
	if expected > limit {
		return 0, errors.Wrapf(ErrSizeLimit, "%s > %s",
			humanize.IBytes(expected), humanize.IBytes(limit))
	}

	auxv, err := elfcore.ExtractAuxv(noteBuf)
	if err != nil {
		level.Error(w.logger).Log("msg", "failed to locate NT_AUXV", "err", err)
		return 0, err
	}
	if err := writeAuxv(auxv, filepath.Join(w.procDir, "auxv")); err != nil {
		return 0, err
	}
	if err := writeMaps(phdrs, mappings, filepath.Join(w.procDir, "maps")); err != nil {
		return 0, err
	}

	if err := w.writeCore(hdr, phdrs, filtered, noteBuf, expected); err != nil {
		level.Error(w.logger).Log("msg", "failed to write trimmed core", "err", err)
		return 0, err
	}
	return expected, nil
}

// writeCore creates the destination exclusively and streams the trimmed core
// into it. Any failure removes the partial file before returning.
func (w *CoredumpWriter) writeCore(hdr *elf.Header64, orig, filtered []elf.Prog64, noteBuf []byte, expected uint64) (err error) {
	dest, err := createExcl(w.destPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dest.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(w.destPath)
		}
	}()

	// ELF header, unchanged from the input.
	var hb bytes.Buffer
	binary.Write(&hb, byteOrder, hdr)
	if _, err = dest.WriteAt(hb.Bytes(), 0); err != nil {
		return errors.Wrap(err, "write ELF header")
	}

	// Program headers at their natural table positions.
	for i := range filtered {
		var pb bytes.Buffer
		binary.Write(&pb, byteOrder, &filtered[i])
		pos := int64(hdr.Ehsize) + int64(i)*int64(hdr.Phentsize)
		if _, err = dest.WriteAt(pb.Bytes(), pos); err != nil {
			return errors.Wrapf(err, "write program header %d", i)
		}
	}

	// NOTE segment bytes, verbatim at their unchanged offset.
	if _, err = dest.WriteAt(noteBuf, int64(filtered[0].Off)); err != nil {
		return errors.Wrap(err, "write NOTE segment")
	}

	// Remaining segments: skip the source forward to each original offset
	// and stream the surviving bytes to the new offset.
	for i := 1; i < len(filtered); i++ {
		if filtered[i].Filesz == 0 {
			continue
		}
		if err = w.src.SkipTo(orig[i].Off); err != nil {
			return errors.Wrapf(err, "seek to segment %d", i)
		}
		if _, err = dest.Seek(int64(filtered[i].Off), io.SeekStart); err != nil {
			return errors.Wrapf(err, "seek destination for segment %d", i)
		}
		if err = w.src.CopyTo(dest, filtered[i].Filesz); err != nil {
			return errors.Wrapf(err, "copy segment %d", i)
		}
	}

	// Trailing zero-size segments leave the file short of its declared
	// extent; pad it out so the on-disk size matches the layout.
	if err = dest.Truncate(int64(expected)); err != nil {
		return errors.Wrap(err, "truncate to expected size")
	}
	return nil
}

func createExcl(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrap(ErrOutputExists, path)
		}
		return nil, errors.Wrapf(err, "create %s", path)
	}
	return f, nil
}
