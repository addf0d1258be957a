package core

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Settings contains all configurable properties of a ping session.
type Settings struct {
	// TTL is the set IP Time to Live
	TTL int

	// MaxCount is the max amount of ECHO_REQUEST packets sent before exiting, 0 means no limit.
	MaxCount int

	// Interval is the interval in seconds between a receival and the next send of an ECHO_REQUEST.
	Interval float64

	// Timeout is the time in seconds to wait for a response, 0 waits until the session is cancelled.
	Timeout float64

	// Deadline is the time in seconds before ping exits regardless of how many packets have been sent
	// or received, 0 means no deadline.
	Deadline int

	// Verbose defines if the headers embedded in ICMP errors are dumped.
	Verbose bool

	// LoggingLevel is the logrus level of the diagnostics written to stderr.
	LoggingLevel uint32
}

// DefaultSettings returns the default settings for a ping session, change as you wish.
func DefaultSettings() *Settings {
	return &Settings{
		TTL:          64,
		MaxCount:     0,
		Interval:     1,
		Timeout:      0,
		Deadline:     0,
		Verbose:      false,
		LoggingLevel: uint32(log.WarnLevel),
	}
}

func (s *Settings) validate() error {
	if s.TTL < 1 || s.TTL > 255 {
		return fmt.Errorf("ttl %d out of range [1, 255]", s.TTL)
	}
	if s.MaxCount < 0 {
		return fmt.Errorf("count must be positive, got %d", s.MaxCount)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %g", s.Interval)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout can not be negative, got %g", s.Timeout)
	}
	if s.Deadline < 0 {
		return fmt.Errorf("deadline can not be negative, got %d", s.Deadline)
	}
	if s.LoggingLevel > uint32(log.TraceLevel) {
		return fmt.Errorf("logging level %d out of range [0, %d]", s.LoggingLevel, log.TraceLevel)
	}

	return nil
}

// Returns the interval setting parsed as a duration.
func (s *Settings) intervalDuration() time.Duration {
	return secondsToDuration(s.Interval)
}

// Returns the timeout setting parsed as a duration.
func (s *Settings) timeoutDuration() time.Duration {
	return secondsToDuration(s.Timeout)
}

// Returns the deadline setting parsed as a duration.
func (s *Settings) deadlineDuration() time.Duration {
	return time.Second * time.Duration(s.Deadline)
}
