package core

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// RoundTripResult is the end result of a round trip
type RoundTripResult int

const (
	// Replied is the result of when an echo request is successfully replied
	Replied RoundTripResult = iota
	// Failed is the result of when an ICMP error comes back for an echo request
	Failed
	// Unrecognized is the result of when an ICMP message of unknown type arrives instead of a reply
	Unrecognized
	// Ignored is the result of when an informational ICMP message arrives instead of a reply
	Ignored
	// TimedOut is the result of when an echo request does not receive a reply in the configured time
	TimedOut
)

// RoundTrip is the outcome of one send/receive cycle.
type RoundTrip struct {
	TTL  int             // ttl of the received datagram
	Seq  int             // seq of the echo request the datagram refers to
	Len  int             // len of the datagram, outer IP header excluded
	Src  net.IP          // src of the datagram
	Time time.Duration   // rtt, successful-only
	Res  RoundTripResult // result

	Type ipv4.ICMPType // type of the received message
	Code int           // code of the received message

	// Original holds the headers embedded in an ICMP error, Failed-only.
	Original *Original
}

var verdictResults = map[Verdict]RoundTripResult{
	Reply:         Replied,
	Failure:       Failed,
	Informational: Ignored,
	UnknownType:   Unrecognized,
}

// newRoundTrip builds the round trip of a datagram accepted for the request with sequence seq.
func newRoundTrip(r *Receipt, seq int, rtt time.Duration) *RoundTrip {
	d := r.Datagram

	rt := &RoundTrip{
		TTL:  d.IP.TTL,
		Seq:  seq,
		Len:  d.ICMPLen(),
		Src:  d.IP.Src,
		Res:  verdictResults[r.Verdict],
		Code: d.ICMP.Code,
	}
	if t, ok := d.ICMP.Type.(ipv4.ICMPType); ok {
		rt.Type = t
	}

	switch rt.Res {
	case Replied:
		if echo, ok := d.Echo(); ok {
			rt.Seq = echo.Seq
		}
		rt.Time = rtt
	case Failed:
		rt.Seq = d.Original.Seq
		rt.Original = d.Original
	}

	return rt
}

// buildTimedOutRT builds a round trip object containing data relevant to a timed out request.
func buildTimedOutRT(seq int, timeout time.Duration) *RoundTrip {
	return &RoundTrip{
		TTL:  0,
		Time: timeout,
		Len:  0,
		Seq:  seq,
		Src:  nil,
		Res:  TimedOut,
	}
}
