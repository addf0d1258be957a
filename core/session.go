package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// receiveBufferSize fits any datagram an ICMP error may quote on an Ethernet path.
const receiveBufferSize = 1500

// Session is a sequence of echo requests sent to a single IPv4 destination.
type Session struct {
	// Stats contain the overall statistics of the session
	Stats Statistics

	settings *Settings

	// id is the identifier carried by every echo request of the session.
	id int

	// addr contains the resolved address of the target host
	addr *net.IPAddr

	// host is the name of the target host shown in the output
	host string

	// listen opens the raw socket when the session runs
	listen Listener

	// transport owns the socket while the session runs
	transport *Transport

	// logger is an instance of logrus used to log activities related to this session
	logger *log.Logger

	isStarted  bool
	isFinished bool

	// stHandlers are the callback functions called when the session starts.
	stHandlers []func(*Session)

	// rtHandlers are the callback functions called after each send/receive cycle.
	rtHandlers []func(*Session, *RoundTrip)

	// endHandlers are the callback functions called with the summary when the session ends.
	endHandlers []func(*Session, *Report)
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithListener replaces the function opening the raw socket.
func WithListener(l Listener) SessionOption {
	return func(s *Session) {
		s.listen = l
	}
}

// WithID replaces the echo identifier, which defaults to the process id.
func WithID(id int) SessionOption {
	return func(s *Session) {
		s.id = id & 0xffff
	}
}

// NewSession creates a new Session to the already resolved addr. host is the name shown
// in the output, the address itself is used when empty.
func NewSession(addr *net.IPAddr, host string, settings *Settings, opts ...SessionOption) (*Session, error) {
	logger := NewLogger(settings.LoggingLevel)

	logger.Debug("Validating settings")
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	if addr == nil || !isIPv4(addr.IP) {
		return nil, fmt.Errorf("destination %v is not an IPv4 address", addr)
	}
	if host == "" {
		host = addr.IP.String()
	}

	session := &Session{
		Stats:    NewStatistics(),
		settings: settings,
		id:       os.Getpid() & 0xffff,
		addr:     addr,
		host:     host,
		listen:   OpenRawSocket,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(session)
	}

	logger.Infof("Created session with id %d to %s (%s)", session.id, session.host, session.addr)

	return session, nil
}

// Run executes the sequence of pings until ctx is cancelled, the deadline expires or
// the configured count is reached. Cancellation is not an error: the end handlers
// receive the summary and Run returns nil. Socket setup and transport failures are
// returned without calling the end handlers.
func (s *Session) Run(ctx context.Context) error {
	if s.isFinished {
		return errors.New("this session has already finished")
	}
	if s.isStarted {
		return errors.New("this session has already started")
	}
	s.isStarted = true

	if s.settings.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.deadlineDuration())
		defer cancel()
	}

	s.logger.Infof("Opening raw socket with ttl %d", s.settings.TTL)
	sock, err := s.listen(s.settings.TTL)
	if err != nil {
		s.logger.Errorf("Could not open raw socket: %s", err)
		return err
	}
	s.transport = newTransport(sock, s.addr.IP, s.id, s.Stats, s.logger)
	defer s.transport.Close()

	s.Stats.SessionStarted()
	s.logger.Info("Calling start callbacks")
	for _, f := range s.stHandlers {
		f(s)
	}

	buf := make([]byte, receiveBufferSize)
	for ctx.Err() == nil {
		rt, err := s.cycle(ctx, buf)
		if err != nil {
			s.logger.Errorf("Transport failure: %s", err)
			return err
		}
		if rt == nil {
			break
		}

		s.processRoundTrip(rt)

		if s.reachedRequestLimit() {
			s.logger.Info("Not firing more requests as we have reached the set count")
			break
		}
		if !s.sleep(ctx) {
			break
		}
	}

	s.finish()
	return nil
}

// cycle sends one echo request and waits for the datagram answering it. A nil round
// trip with a nil error means the session was cancelled.
func (s *Session) cycle(ctx context.Context, buf []byte) (*RoundTrip, error) {
	seq := s.transport.Sequence()
	pkt := BuildEchoRequest(s.id, seq)

	// time.Now carries a monotonic reading, so wall clock changes do not skew the rtt
	sentAt := time.Now()
	if _, err := s.transport.Send(ctx, pkt[:]); err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, err
	}

	rctx := ctx
	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, s.settings.timeoutDuration())
		defer cancel()
	}

	receipt, err := s.transport.Receive(rctx, buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		if rctx.Err() != nil {
			return buildTimedOutRT(seq, s.settings.timeoutDuration()), nil
		}
		return nil, err
	}

	return newRoundTrip(receipt, seq, receipt.At.Sub(sentAt)), nil
}

// sleep waits for the interval between two requests, returning false if ctx is done first.
func (s *Session) sleep(ctx context.Context) bool {
	timer := time.NewTimer(s.settings.intervalDuration())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// finish computes the summary and calls the end handlers.
func (s *Session) finish() {
	s.Stats.SessionEnded()
	report := s.Stats.Report()

	s.logger.Info("Calling ending callbacks")
	for _, f := range s.endHandlers {
		f(s, report)
	}

	s.isFinished = true
	s.logger.Info("Session ended")
}

// processRoundTrip records a round trip and calls all handlers for it.
func (s *Session) processRoundTrip(rt *RoundTrip) {
	switch rt.Res {
	case Replied:
		s.Stats.AddSample(rt.Time)
	case Failed, Unrecognized:
		s.Stats.ErrorReceived()
	case TimedOut:
		s.Stats.EchoTimedOut()
	}

	s.logger.Debugf("Calling all handlers for round trip with seq %d", rt.Seq)
	for _, f := range s.rtHandlers {
		f(s, rt)
	}
}

// reachedRequestLimit whether we have reached the request limit of this session.
func (s *Session) reachedRequestLimit() bool {
	return s.settings.MaxCount > 0 && int(s.Stats.GetTotalSent()) >= s.settings.MaxCount
}

// IsStarted returns whether this session is started
func (s *Session) IsStarted() bool {
	return s.isStarted
}

// IsFinished returns whether this session is finished
func (s *Session) IsFinished() bool {
	return s.isFinished
}

// Address is the resolved address of the target host
func (s *Session) Address() *net.IPAddr {
	return s.addr
}

// Host is the display name of the target host
func (s *Session) Host() string {
	return s.host
}

// ID is the identifier carried by the echo requests of the session
func (s *Session) ID() int {
	return s.id
}

// Verbose tells whether verbose output was requested
func (s *Session) Verbose() bool {
	return s.settings.Verbose
}

// AddRtHandler adds a handler function that will be called after each send/receive cycle
func (s *Session) AddRtHandler(handler func(*Session, *RoundTrip)) {
	s.rtHandlers = append(s.rtHandlers, handler)
}

// AddStHandler adds a handler function that will be called when the session starts
func (s *Session) AddStHandler(handler func(*Session)) {
	s.stHandlers = append(s.stHandlers, handler)
}

// AddEndHandler adds a handler function that will be called when the session ends
func (s *Session) AddEndHandler(handler func(*Session, *Report)) {
	s.endHandlers = append(s.endHandlers, handler)
}
