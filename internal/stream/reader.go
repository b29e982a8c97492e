// Package stream provides a forward-only reader over a core-dump byte
// source. The kernel hands the dump over a pipe, so the source can never be
// rewound; the reader tracks how many bytes it has consumed and turns any
// backward movement into an error.
package stream

import (
	"io"

	"github.com/pkg/errors"
)

var (
	// ErrTruncated is returned when the source ends before an expected
	// read completes.
	ErrTruncated = errors.New("input stream truncated")

	// ErrInvalidSeek is returned for any attempt to move the reader to an
	// offset it has already passed.
	ErrInvalidSeek = errors.New("cannot seek backward on forward-only stream")
)

const copyBufSize = 32 * 1024

// Reader wraps a forward-only byte source and counts consumed bytes.
type Reader struct {
	src      io.Reader
	consumed uint64
}

// New creates a Reader positioned at offset 0 of src.
func New(src io.Reader) *Reader {
	return &Reader{src: src}
}

// Consumed reports how many bytes have been read from the source so far.
func (r *Reader) Consumed() uint64 {
	return r.consumed
}

// ReadExact fills buf completely or fails. A short source yields
// ErrTruncated; bytes read before the failure still count as consumed.
func (r *Reader) ReadExact(buf []byte) error {
	n, err := io.ReadFull(r.src, buf)
	r.consumed += uint64(n)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrapf(ErrTruncated, "wanted %d bytes, got %d", len(buf), n)
	}
	if err != nil {
		return errors.Wrap(err, "read")
	}
	return nil
}

// CopyTo reads exactly n bytes from the source, writing each chunk to dst.
// A nil dst discards the bytes. The source running dry before n bytes yields
// ErrTruncated; a sink write failure aborts the copy immediately.
func (r *Reader) CopyTo(dst io.Writer, n uint64) error {
	buf := make([]byte, copyBufSize)
	for n > 0 {
		chunk := uint64(len(buf))
		if n < chunk {
			chunk = n
		}
		nr, err := r.src.Read(buf[:chunk])
		if nr > 0 {
			r.consumed += uint64(nr)
			n -= uint64(nr)
			if dst != nil {
				if _, werr := dst.Write(buf[:nr]); werr != nil {
					return errors.Wrap(werr, "write to sink")
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read")
		}
	}
	if n > 0 {
		return errors.Wrapf(ErrTruncated, "%d bytes short", n)
	}
	return nil
}

// SkipTo reads and discards bytes until the consumed counter reaches offset.
// Offsets already passed are unreachable and yield ErrInvalidSeek with the
// counter unchanged.
func (r *Reader) SkipTo(offset uint64) error {
	if offset < r.consumed {
		return errors.Wrapf(ErrInvalidSeek, "target %#x is before consumed %#x", offset, r.consumed)
	}
	return r.CopyTo(nil, offset-r.consumed)
}
