//go:build linux

package coordinator

import "golang.org/x/sys/unix"

// epollPoller multiplexes worker pipe read-ends via epoll. Adapted from the
// teacher's eventloop.FastPoller (poller_linux.go): same epoll_create1 /
// epoll_ctl / epoll_wait shape, simplified because the coordinator's event
// loop is strictly single-threaded (spec.md §5), so the concurrent-access
// bookkeeping the teacher needs (RWMutex-guarded fd table, version counter
// for torn-read detection) has no job to do here.
type epollPoller struct {
	epfd     int
	eventBuf [1024]unix.EpollEvent
}

func newNativePoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: epfd}, nil
}

func (p *epollPoller) register(fd int) error {
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) unregister(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(timeoutMs int) ([]readyFD, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]readyFD, 0, n)
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		var events IOEvent
		if ev.Events&unix.EPOLLIN != 0 {
			events |= EventRead
		}
		if ev.Events&unix.EPOLLHUP != 0 || ev.Events&unix.EPOLLRDHUP != 0 {
			events |= EventHangup
		}
		if ev.Events&unix.EPOLLERR != 0 {
			events |= EventError
		}
		out = append(out, readyFD{fd: int(ev.Fd), events: events})
	}
	return out, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}
