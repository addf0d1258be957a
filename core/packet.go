package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	// PacketSize is the size of an echo request on the wire, ICMP header included.
	PacketSize = 64

	// HeaderSize is the size of the ICMP header of echo and error messages.
	HeaderSize = 8

	// PayloadSize is the size of the filler carried by every echo request.
	PayloadSize = PacketSize - HeaderSize

	echoCode     = 0
	icmpProtocol = 1
)

var (
	// ErrTruncated is returned when a datagram is shorter than its declared headers.
	ErrTruncated = errors.New("truncated datagram")

	// ErrMalformed is returned when a header carries values that cannot be parsed.
	ErrMalformed = errors.New("malformed datagram")
)

// EchoPacket is an ICMP echo request as laid out on the wire.
type EchoPacket [PacketSize]byte

// ID returns the identifier field of the packet.
func (p *EchoPacket) ID() int {
	return int(binary.BigEndian.Uint16(p[4:6]))
}

// Seq returns the sequence field of the packet.
func (p *EchoPacket) Seq() int {
	return int(binary.BigEndian.Uint16(p[6:8]))
}

// Checksum returns the checksum field of the packet.
func (p *EchoPacket) Checksum() uint16 {
	return binary.BigEndian.Uint16(p[2:4])
}

// BuildEchoRequest builds the echo request with the given identifier and sequence.
// The payload is the pattern '0', '1', '2', ... terminated by a zero byte.
func BuildEchoRequest(id, seq int) EchoPacket {
	var p EchoPacket

	p[0] = byte(ipv4.ICMPTypeEcho)
	p[1] = echoCode
	binary.BigEndian.PutUint16(p[4:6], uint16(id))
	binary.BigEndian.PutUint16(p[6:8], uint16(seq))

	payload := p[HeaderSize:]
	for i := 0; i < len(payload)-1; i++ {
		payload[i] = '0' + byte(i)
	}
	payload[len(payload)-1] = 0

	binary.BigEndian.PutUint16(p[2:4], ComputeChecksum(p[:]))
	return p
}

// ComputeChecksum returns the Internet checksum (RFC 1071) of b.
//
// Words are summed in network byte order, so the result is meant to be written big-endian.
// A trailing odd byte is summed as if followed by a zero byte, which makes it the high byte
// of its word here. A sum over little-endian words sees that byte as the low byte and
// returns the byte-swapped value, e.g. ^0x00ab instead of ^0xab00 for {0xab}. Both
// produce the same two bytes on the wire.
func ComputeChecksum(b []byte) uint16 {
	var sum uint32

	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}

	for sum>>16 != 0 {
		sum = sum>>16 + sum&0xffff
	}

	return ^uint16(sum)
}

// Datagram is an inbound IPv4 datagram as read from a raw socket.
type Datagram struct {
	// IP is the outer IP header.
	IP *ipv4.Header

	// ICMP is the parsed ICMP message, nil when the datagram is not ICMP.
	ICMP *icmp.Message

	// Original holds the headers embedded in an ICMP error message, nil otherwise.
	Original *Original

	// Raw is the whole datagram, IP header included.
	Raw []byte
}

// Original is the copy of the datagram that provoked an ICMP error.
type Original struct {
	IP     *ipv4.Header
	Header []byte // raw IP header bytes, options included
	Type   ipv4.ICMPType
	Code   int
	ID     int
	Seq    int
}

// ICMPLen is the number of bytes following the outer IP header.
func (d *Datagram) ICMPLen() int {
	return len(d.Raw) - d.IP.Len
}

// Echo returns the echo body of the message, if it carries one.
func (d *Datagram) Echo() (*icmp.Echo, bool) {
	if d.ICMP == nil {
		return nil, false
	}
	echo, ok := d.ICMP.Body.(*icmp.Echo)
	return echo, ok
}

// ParseInbound parses a datagram read from a raw IPv4 ICMP socket. Datagrams of other
// protocols are returned with only their IP header parsed.
func ParseInbound(b []byte) (*Datagram, error) {
	if len(b) < ipv4.HeaderLen {
		return nil, fmt.Errorf("%w: %d bytes, an IPv4 header needs %d", ErrTruncated, len(b), ipv4.HeaderLen)
	}

	ihl := int(b[0]&0x0f) << 2
	if ihl < ipv4.HeaderLen {
		return nil, fmt.Errorf("%w: header length %d", ErrMalformed, ihl)
	}
	if ihl > len(b) {
		return nil, fmt.Errorf("%w: header length %d exceeds %d bytes", ErrTruncated, ihl, len(b))
	}

	h, err := ipv4.ParseHeader(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	d := &Datagram{IP: h, Raw: b}
	if h.Protocol != icmpProtocol {
		return d, nil
	}

	body := b[h.Len:]
	if len(body) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes of ICMP, need %d", ErrTruncated, len(body), HeaderSize)
	}

	m, err := icmp.ParseMessage(icmpProtocol, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	d.ICMP = m

	if isFailureType(m.Type) {
		d.Original, err = parseOriginal(body[HeaderSize:])
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

// parseOriginal parses the IP header and the first 8 bytes of the datagram embedded
// in the body of an ICMP error message.
func parseOriginal(b []byte) (*Original, error) {
	if len(b) < ipv4.HeaderLen {
		return nil, fmt.Errorf("%w: embedded datagram of %d bytes", ErrTruncated, len(b))
	}

	h, err := icmp.ParseIPv4Header(b)
	if err != nil {
		return nil, fmt.Errorf("%w: embedded header: %s", ErrTruncated, err)
	}
	if h.Len < ipv4.HeaderLen {
		return nil, fmt.Errorf("%w: embedded header length %d", ErrMalformed, h.Len)
	}

	rest := b[h.Len:]
	if len(rest) < HeaderSize {
		return nil, fmt.Errorf("%w: embedded ICMP header of %d bytes", ErrTruncated, len(rest))
	}

	return &Original{
		IP:     h,
		Header: b[:h.Len],
		Type:   ipv4.ICMPType(rest[0]),
		Code:   int(rest[1]),
		ID:     int(binary.BigEndian.Uint16(rest[4:6])),
		Seq:    int(binary.BigEndian.Uint16(rest[6:8])),
	}, nil
}
