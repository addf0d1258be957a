package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// wakePeriod bounds how long a receive waits for readiness before looking at the
	// cancellation token again.
	wakePeriod = 50 * time.Millisecond

	// sendBackoff is the pause between two send attempts that would have blocked.
	sendBackoff = time.Millisecond
)

var (
	// ErrWouldBlock is returned by a Socket when the operation cannot complete right away.
	ErrWouldBlock = errors.New("operation would block")

	// ErrSocketClosed is returned when the socket reports a zero-byte transfer.
	ErrSocketClosed = errors.New("socket closed")
)

// Socket is a non-blocking raw IPv4 ICMP socket.
type Socket interface {
	// SendTo writes b to dst. It returns ErrWouldBlock when the send buffer is full.
	SendTo(b []byte, dst net.IP) (int, error)

	// RecvFrom reads one datagram, IP header included. It returns ErrWouldBlock when
	// nothing is queued.
	RecvFrom(b []byte) (int, error)

	// WaitReadable blocks until the socket has data queued or timeout elapses.
	WaitReadable(timeout time.Duration) (bool, error)

	Close() error
}

// Listener opens the raw socket of a session with the given time to live.
type Listener func(ttl int) (Socket, error)

// Receipt is a datagram accepted by the transport.
type Receipt struct {
	Datagram *Datagram
	Verdict  Verdict
	At       time.Time
}

// Transport owns the socket of a session and moves echo requests and replies through it.
type Transport struct {
	sock   Socket
	dst    net.IP
	id     int
	seq    int
	stats  Statistics
	logger *log.Logger
}

func newTransport(sock Socket, dst net.IP, id int, stats Statistics, logger *log.Logger) *Transport {
	return &Transport{
		sock:   sock,
		dst:    dst,
		id:     id & 0xffff,
		seq:    1,
		stats:  stats,
		logger: logger,
	}
}

// Sequence is the sequence number the next echo request must carry.
func (t *Transport) Sequence() int {
	return t.seq
}

// Send writes pkt to the destination, retrying while the socket would block.
// On success the sent counter is incremented and the sequence advanced.
func (t *Transport) Send(ctx context.Context, pkt []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, err := t.sock.SendTo(pkt, t.dst)
		if errors.Is(err, ErrWouldBlock) {
			t.logger.Trace("Send would block, retrying")
			time.Sleep(sendBackoff)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("sendto: %w", err)
		}
		if n == 0 {
			return 0, fmt.Errorf("sendto: %w", ErrSocketClosed)
		}

		t.stats.EchoRequested()
		t.seq = (t.seq + 1) & 0xffff
		t.logger.Debugf("Sent %d bytes to %s, next sequence %d", n, t.dst, t.seq)

		return n, nil
	}
}

// Receive reads datagrams until one is accepted by Classify. Datagrams that fail to
// parse or that belong to someone else are dropped and reading goes on.
// It returns the context error as soon as ctx is done.
func (t *Transport) Receive(ctx context.Context, buf []byte) (*Receipt, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ready, err := t.sock.WaitReadable(wakePeriod)
		if err != nil {
			return nil, fmt.Errorf("poll: %w", err)
		}
		if !ready {
			continue
		}

		n, err := t.sock.RecvFrom(buf)
		if errors.Is(err, ErrWouldBlock) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("recvfrom: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("recvfrom: %w", ErrSocketClosed)
		}

		at := time.Now()
		raw := make([]byte, n)
		copy(raw, buf[:n])

		d, err := ParseInbound(raw)
		if err != nil {
			t.logger.Debugf("Dropping datagram of %d bytes: %s", n, err)
			continue
		}

		v := Classify(d, t.id)
		if v == Discard {
			t.logger.Tracef("Dropping datagram from %s, protocol %d, not addressed to id %d",
				d.IP.Src, d.IP.Protocol, t.id)
			continue
		}

		if v == Reply {
			t.stats.ReplyReceived()
		}
		t.logger.Debugf("Accepted %s datagram of %d bytes from %s", v, n, d.IP.Src)

		return &Receipt{Datagram: d, Verdict: v, At: at}, nil
	}
}

// Close releases the socket.
func (t *Transport) Close() error {
	return t.sock.Close()
}
