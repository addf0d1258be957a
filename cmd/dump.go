package cmd

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mikaelmello/icmping/core"
	"golang.org/x/net/ipv4"
)

// dumpOriginal prints the IP and ICMP headers quoted by an ICMP error.
func dumpOriginal(w io.Writer, o *core.Original) {
	h := o.IP

	fmt.Fprintln(w, "IP Hdr Dump:")
	for i := 0; i+1 < ipv4.HeaderLen && i+1 < len(o.Header); i += 2 {
		fmt.Fprintf(w, " %04x", binary.BigEndian.Uint16(o.Header[i:i+2]))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Vr HL TOS  Len   ID Flg  off TTL Pro  cks      Src      Dst     Data")
	fmt.Fprintf(w, " %1x  %1x  %02x %04x %04x   %1x %04x  %02x  %02x %04x %s  %s ",
		h.Version, h.Len>>2, h.TOS, h.TotalLen, h.ID, int(h.Flags), h.FragOff,
		h.TTL, h.Protocol, h.Checksum, h.Src, h.Dst)
	for _, b := range h.Options {
		fmt.Fprintf(w, "%02x", b)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "ICMP: type %d, code %d, size %d", int(o.Type), o.Code, h.TotalLen-h.Len)
	if o.Type == ipv4.ICMPTypeEcho || o.Type == ipv4.ICMPTypeEchoReply {
		fmt.Fprintf(w, ", id 0x%04x, seq 0x%04x", o.ID, o.Seq)
	}
	fmt.Fprintln(w)
}
