package core

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	localIP  = net.IPv4(192, 168, 1, 10).To4()
	targetIP = net.IPv4(10, 0, 0, 1).To4()
	routerIP = net.IPv4(192, 168, 1, 1).To4()

	serializeOpts = gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
)

// serialize encodes the layers with gopacket, computing lengths and checksums.
func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, serializeOpts, ls...))
	return buf.Bytes()
}

func ipLayer(src, dst net.IP, ttl uint8, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      ttl,
		Id:       0x1c46,
		Protocol: proto,
		SrcIP:    src,
		DstIP:    dst,
	}
}

func icmpLayer(typ, code uint8, id, seq uint16) *layers.ICMPv4 {
	return &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(typ, code),
		Id:       id,
		Seq:      seq,
	}
}

// buildEchoReply builds the datagram a host returns for an echo request
func buildEchoReply(t *testing.T, src net.IP, ttl uint8, id, seq int) []byte {
	req := BuildEchoRequest(id, seq)
	return serialize(t,
		ipLayer(src, localIP, ttl, layers.IPProtocolICMPv4),
		icmpLayer(layers.ICMPv4TypeEchoReply, 0, uint16(id), uint16(seq)),
		gopacket.Payload(req[HeaderSize:]),
	)
}

// buildEchoRequestDatagram builds one of our own requests as seen on the raw socket
func buildEchoRequestDatagram(t *testing.T, id, seq int) []byte {
	req := BuildEchoRequest(id, seq)
	return serialize(t,
		ipLayer(localIP, targetIP, 64, layers.IPProtocolICMPv4),
		gopacket.Payload(req[:]),
	)
}

// buildOriginal builds the first 28 bytes of an echo request as quoted by an ICMP error
func buildOriginal(t *testing.T, typ uint8, id, seq int) []byte {
	req := BuildEchoRequest(id, seq)
	full := serialize(t,
		ipLayer(localIP, targetIP, 1, layers.IPProtocolICMPv4),
		icmpLayer(typ, 0, uint16(id), uint16(seq)),
		gopacket.Payload(req[HeaderSize:]),
	)
	return full[:28]
}

// buildFailure builds an ICMP error sent by a router about an echo request
func buildFailure(t *testing.T, typ, code uint8, id, seq int) []byte {
	return serialize(t,
		ipLayer(routerIP, localIP, 250, layers.IPProtocolICMPv4),
		icmpLayer(typ, code, 0, 0),
		gopacket.Payload(buildOriginal(t, layers.ICMPv4TypeEchoRequest, id, seq)),
	)
}

// buildUDPDatagram builds a datagram of another protocol
func buildUDPDatagram(t *testing.T) []byte {
	udp := &layers.UDP{SrcPort: 53, DstPort: 4444}
	ip := ipLayer(targetIP, localIP, 64, layers.IPProtocolUDP)
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ip, udp, gopacket.Payload([]byte("not icmp")))
}

// fakeSocket is an in-memory Socket. A responder can queue the answer to each request.
type fakeSocket struct {
	mu sync.Mutex

	inbound  [][]byte
	sent     [][]byte
	sendErrs []error
	recvErrs []error
	zeroSend bool
	closed   bool
	waits    int

	// responder returns the datagrams queued after a request is sent
	responder func(pkt []byte) [][]byte

	// onWait is called on every readiness wait with the number of waits so far
	onWait func(n int)
}

func (f *fakeSocket) SendTo(b []byte, dst net.IP) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		return 0, err
	}
	if f.zeroSend {
		return 0, nil
	}

	pkt := append([]byte(nil), b...)
	f.sent = append(f.sent, pkt)
	if f.responder != nil {
		f.inbound = append(f.inbound, f.responder(pkt)...)
	}

	return len(b), nil
}

func (f *fakeSocket) RecvFrom(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.recvErrs) > 0 {
		err := f.recvErrs[0]
		f.recvErrs = f.recvErrs[1:]
		return 0, err
	}
	if len(f.inbound) == 0 {
		return 0, ErrWouldBlock
	}

	n := copy(b, f.inbound[0])
	f.inbound = f.inbound[1:]
	return n, nil
}

func (f *fakeSocket) WaitReadable(timeout time.Duration) (bool, error) {
	f.mu.Lock()
	f.waits++
	n := f.waits
	onWait := f.onWait
	ready := len(f.inbound) > 0 || len(f.recvErrs) > 0
	f.mu.Unlock()

	if onWait != nil {
		onWait(n)
	}
	if !ready {
		time.Sleep(time.Millisecond)
	}
	return ready, nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *fakeSocket) push(pkts ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inbound = append(f.inbound, pkts...)
}

func (f *fakeSocket) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sent)
}

func (f *fakeSocket) listener() Listener {
	return func(ttl int) (Socket, error) {
		return f, nil
	}
}

// echoResponder answers every request with a reply from the target
func echoResponder(t *testing.T) func(pkt []byte) [][]byte {
	return func(pkt []byte) [][]byte {
		id := int(binary.BigEndian.Uint16(pkt[4:6]))
		seq := int(binary.BigEndian.Uint16(pkt[6:8]))
		return [][]byte{buildEchoReply(t, targetIP, 57, id, seq)}
	}
}
