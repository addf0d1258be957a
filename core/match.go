package core

import (
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ICMP types missing from golang.org/x/net/ipv4.
const (
	icmpTypeSourceQuench       ipv4.ICMPType = 4
	icmpTypeInfoRequest        ipv4.ICMPType = 15
	icmpTypeInfoReply          ipv4.ICMPType = 16
	icmpTypeAddressMaskRequest ipv4.ICMPType = 17
	icmpTypeAddressMaskReply   ipv4.ICMPType = 18
)

// Verdict is the classification of an inbound datagram relative to a session.
type Verdict int

const (
	// Discard means the datagram does not belong to the session.
	Discard Verdict = iota
	// Reply is an echo reply carrying the session identifier.
	Reply
	// Failure is an ICMP error provoked by one of the session echo requests.
	Failure
	// Informational is a non-error ICMP message that is accepted but not reported.
	Informational
	// UnknownType is an ICMP message of a type not known to the session.
	UnknownType
)

func (v Verdict) String() string {
	switch v {
	case Discard:
		return "discard"
	case Reply:
		return "reply"
	case Failure:
		return "failure"
	case Informational:
		return "informational"
	case UnknownType:
		return "unknown type"
	}
	return "unknown"
}

// Classify decides whether d answers an echo request sent with identifier id.
//
// A raw socket sees the ICMP traffic of every process on the host, including our own
// outgoing requests, so the identifier is the only way to tell our replies apart.
func Classify(d *Datagram, id int) Verdict {
	if d == nil || d.IP == nil || d.IP.Protocol != icmpProtocol || d.ICMP == nil {
		return Discard
	}

	id &= 0xffff

	switch d.ICMP.Type {
	case ipv4.ICMPTypeEcho:
		return Discard
	case ipv4.ICMPTypeEchoReply:
		echo, ok := d.Echo()
		if !ok || echo.ID != id {
			return Discard
		}
		return Reply
	case ipv4.ICMPTypeTimeExceeded, ipv4.ICMPTypeDestinationUnreachable,
		icmpTypeSourceQuench, ipv4.ICMPTypeParameterProblem:
		o := d.Original
		if o == nil || o.Type != ipv4.ICMPTypeEcho || o.ID != id {
			return Discard
		}
		return Failure
	case ipv4.ICMPTypeRedirect, ipv4.ICMPTypeTimestamp, ipv4.ICMPTypeTimestampReply,
		icmpTypeInfoRequest, icmpTypeInfoReply, icmpTypeAddressMaskRequest, icmpTypeAddressMaskReply:
		return Informational
	}

	return UnknownType
}

// isFailureType reports whether messages of type t embed the datagram that provoked them.
func isFailureType(t icmp.Type) bool {
	switch t {
	case ipv4.ICMPTypeTimeExceeded, ipv4.ICMPTypeDestinationUnreachable,
		icmpTypeSourceQuench, ipv4.ICMPTypeParameterProblem:
		return true
	}
	return false
}

// FailureText describes an ICMP error type the way ping reports it.
func FailureText(t ipv4.ICMPType) string {
	switch t {
	case ipv4.ICMPTypeTimeExceeded:
		return "Time to live exceeded"
	case ipv4.ICMPTypeDestinationUnreachable:
		return "Destination unreachable"
	case icmpTypeSourceQuench:
		return "Source quench"
	case ipv4.ICMPTypeParameterProblem:
		return "ICMP parameter problem"
	}
	return t.String()
}
