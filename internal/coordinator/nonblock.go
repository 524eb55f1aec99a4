package coordinator

import (
	"os"

	"golang.org/x/sys/unix"
)

// setNonblocking puts f's underlying fd in non-blocking mode, so a Read
// during the multiplex loop never stalls the single-threaded event loop
// (spec.md §4.5 step 4).
func setNonblocking(f *os.File) error {
	return unix.SetNonblock(int(f.Fd()), true)
}

// setBlocking reverses setNonblocking, used during drain (spec.md §4.5
// step 6: "switch it to blocking and read to EOF").
func setBlocking(f *os.File) error {
	return unix.SetNonblock(int(f.Fd()), false)
}
