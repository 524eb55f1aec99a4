//go:build !linux && !darwin

package coordinator

import "fmt"

// newNativePoller has no implementation outside Linux/Darwin: the worker
// model here is posix fork/exec plus pipes (spec.md §9), which has no
// equivalent on other platforms.
func newNativePoller() (poller, error) {
	return nil, fmt.Errorf("coordinator: unsupported platform")
}
