//go:build darwin

package coordinator

import "golang.org/x/sys/unix"

// kqueuePoller multiplexes worker pipe read-ends via kqueue. Adapted from
// the teacher's eventloop.FastPoller (poller_darwin.go): same kqueue/kevent
// shape, simplified for the coordinator's single-threaded event loop (see
// poller_linux.go's doc comment for why the teacher's concurrency
// bookkeeping is dropped here).
type kqueuePoller struct {
	kq       int
	eventBuf [1024]unix.Kevent_t
}

func newNativePoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{kq: kq}, nil
}

func (p *kqueuePoller) register(fd int) error {
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (p *kqueuePoller) unregister(fd int) error {
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (p *kqueuePoller) wait(timeoutMs int) ([]readyFD, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]readyFD, 0, n)
	for i := 0; i < n; i++ {
		kev := p.eventBuf[i]
		var events IOEvent
		if kev.Filter == unix.EVFILT_READ {
			events |= EventRead
		}
		if kev.Flags&unix.EV_EOF != 0 {
			events |= EventHangup
		}
		if kev.Flags&unix.EV_ERROR != 0 {
			events |= EventError
		}
		out = append(out, readyFD{fd: int(kev.Ident), events: events})
	}
	return out, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}
