package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/mikaelmello/icmping/core"
	"golang.org/x/net/ipv4"
)

// printer writes the human readable output of a session.
type printer struct {
	out io.Writer
}

func (p *printer) onStart(s *core.Session) {
	fmt.Fprintf(p.out, "PING %s (%s) %d(%d) bytes of data",
		s.Host(), s.Address(), core.PayloadSize, core.PacketSize+ipv4.HeaderLen)
	if s.Verbose() {
		fmt.Fprintf(p.out, ", id 0x%04x = %d", s.ID(), s.ID())
	}
	fmt.Fprintln(p.out, ".")
}

func (p *printer) onRoundTrip(s *core.Session, rt *core.RoundTrip) {
	switch rt.Res {
	case core.Replied:
		fmt.Fprintf(p.out, "%s: icmp_seq=%d ttl=%d time=%.2f ms\n",
			p.from(s, rt), rt.Seq, rt.TTL, milliseconds(rt.Time))
	case core.Failed:
		fmt.Fprintf(p.out, "%s: %s\n", p.from(s, rt), core.FailureText(rt.Type))
		if s.Verbose() && rt.Original != nil {
			dumpOriginal(p.out, rt.Original)
		}
	case core.Unrecognized:
		fmt.Fprintf(p.out, "%s: Invalid ICMP packet type (%04x)\n", p.from(s, rt), int(rt.Type))
	case core.TimedOut:
		fmt.Fprintf(p.out, "Request timeout for icmp_seq %d\n", rt.Seq)
	}
}

func (p *printer) onEnd(s *core.Session, r *core.Report) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "--- %s ping statistics ---\n", s.Host())

	fmt.Fprintf(p.out, "%d packets transmitted, %d received", r.Transmitted, r.Received)
	if r.Errors > 0 {
		fmt.Fprintf(p.out, ", +%d errors", r.Errors)
	}
	fmt.Fprintf(p.out, ", %.1f%% packet loss, time %dms\n", r.Loss, r.Elapsed.Milliseconds())

	if r.HasRTT {
		fmt.Fprintf(p.out, "rtt min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f ms\n", r.Min, r.Avg, r.Max, r.StdDev)
	}
}

// from is the prefix naming the sender, the host name is only shown for the destination itself.
func (p *printer) from(s *core.Session, rt *core.RoundTrip) string {
	if rt.Src.Equal(s.Address().IP) {
		return fmt.Sprintf("%d bytes from %s (%s)", rt.Len, s.Host(), rt.Src)
	}
	return fmt.Sprintf("%d bytes from %s", rt.Len, rt.Src)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
