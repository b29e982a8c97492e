// Crasher builds up some anonymous heap data and then faults, so the kernel
// produces a core dump with both file-backed and anonymous LOAD segments.
// Pipe that core into coretrim to exercise the rewrite end to end:
//
//	ulimit -c unlimited
//	go build -o crasher ./test/crasher
//	GOTRACEBACK=crash ./crasher
//	coretrim -o core.trimmed --proc-dir out core
package main

import (
	"fmt"
	"os"
)

var p *uint64

func main() {
	// Anonymous heap content worth keeping after file-backed segments
	// are dropped.
	buf := make([]byte, 1<<20)
	for i := range buf {
		buf[i] = byte(i)
	}
	fmt.Fprintf(os.Stderr, "crasher: pid %d, faulting now\n", os.Getpid())
	*p = uint64(buf[0]) // SIGSEGV; GOTRACEBACK=crash turns it into a core
}
