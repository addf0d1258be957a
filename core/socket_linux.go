//go:build linux

package core

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// rawSocket is a SOCK_RAW IPPROTO_ICMP socket in non-blocking mode.
type rawSocket struct {
	fd int
}

// OpenRawSocket opens the raw ICMP socket used to ping. It requires CAP_NET_RAW.
func OpenRawSocket(ttl int) (Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	opts := []struct {
		name  string
		level int
		opt   int
		value int
	}{
		{"IP_TTL", unix.IPPROTO_IP, unix.IP_TTL, ttl},
		{"SO_REUSEADDR", unix.SOL_SOCKET, unix.SO_REUSEADDR, 1},
		{"SO_REUSEPORT", unix.SOL_SOCKET, unix.SO_REUSEPORT, 1},
	}
	for _, o := range opts {
		if err := unix.SetsockoptInt(fd, o.level, o.opt, o.value); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("setsockopt(%s): %w", o.name, err)
		}
	}

	return &rawSocket{fd: fd}, nil
}

func (s *rawSocket) SendTo(b []byte, dst net.IP) (int, error) {
	ip4 := dst.To4()
	if ip4 == nil {
		return 0, fmt.Errorf("%s is not an IPv4 address", dst)
	}

	sa := &unix.SockaddrInet4{}
	copy(sa.Addr[:], ip4)

	n, err := unix.SendmsgN(s.fd, b, nil, sa, unix.MSG_DONTWAIT)
	if wouldBlock(err) {
		return 0, ErrWouldBlock
	}
	return n, err
}

func (s *rawSocket) RecvFrom(b []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, b, unix.MSG_DONTWAIT)
	if wouldBlock(err) {
		return 0, ErrWouldBlock
	}
	return n, err
}

func (s *rawSocket) WaitReadable(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if errors.Is(err, unix.EINTR) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *rawSocket) Close() error {
	return unix.Close(s.fd)
}

func wouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}
