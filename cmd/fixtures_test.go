package cmd

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/mikaelmello/icmping/core"
	"github.com/stretchr/testify/require"
)

var (
	localIP  = net.IPv4(192, 168, 1, 10).To4()
	targetIP = net.IPv4(10, 0, 0, 1).To4()
	routerIP = net.IPv4(192, 168, 1, 1).To4()

	targetAddr = &net.IPAddr{IP: targetIP}
)

const testID = 0x4d2

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func ipLayer(src, dst net.IP, ttl uint8) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      ttl,
		Id:       0x1c46,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    src,
		DstIP:    dst,
	}
}

// buildReply builds the datagram a host returns for an echo request
func buildReply(t *testing.T, src net.IP, id, seq int) []byte {
	req := core.BuildEchoRequest(id, seq)
	return serialize(t,
		ipLayer(src, localIP, 57),
		&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0), Id: uint16(id), Seq: uint16(seq)},
		gopacket.Payload(req[core.HeaderSize:]),
	)
}

// buildFailure builds an ICMP error sent by a router about one of our echo requests
func buildFailure(t *testing.T, typ, code uint8, id, seq int) []byte {
	req := core.BuildEchoRequest(id, seq)
	original := serialize(t,
		ipLayer(localIP, targetIP, 1),
		gopacket.Payload(req[:]),
	)

	return serialize(t,
		ipLayer(routerIP, localIP, 250),
		&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(typ, code)},
		gopacket.Payload(original[:28]),
	)
}

// parse parses a datagram that must be valid
func parse(t *testing.T, b []byte) *core.Datagram {
	d, err := core.ParseInbound(b)
	require.NoError(t, err)
	return d
}

// echoSocket is an in-memory socket answering each request with the datagrams of respond
type echoSocket struct {
	mu      sync.Mutex
	inbound [][]byte
	respond func(id, seq int) [][]byte
}

func (s *echoSocket) SendTo(b []byte, dst net.IP) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.respond != nil {
		id := int(binary.BigEndian.Uint16(b[4:6]))
		seq := int(binary.BigEndian.Uint16(b[6:8]))
		s.inbound = append(s.inbound, s.respond(id, seq)...)
	}
	return len(b), nil
}

func (s *echoSocket) RecvFrom(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.inbound) == 0 {
		return 0, core.ErrWouldBlock
	}
	n := copy(b, s.inbound[0])
	s.inbound = s.inbound[1:]
	return n, nil
}

func (s *echoSocket) WaitReadable(timeout time.Duration) (bool, error) {
	s.mu.Lock()
	ready := len(s.inbound) > 0
	s.mu.Unlock()

	if !ready {
		time.Sleep(time.Millisecond)
	}
	return ready, nil
}

func (s *echoSocket) Close() error {
	return nil
}

func (s *echoSocket) listener() core.Listener {
	return func(int) (core.Socket, error) {
		return s, nil
	}
}

// replying answers every request from the target
func replying(t *testing.T) *echoSocket {
	return &echoSocket{respond: func(id, seq int) [][]byte {
		return [][]byte{buildReply(t, targetIP, id, seq)}
	}}
}
