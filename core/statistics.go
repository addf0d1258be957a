package core

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics provides several functions to update and retrieve stats about a session
type Statistics interface {
	SessionStarted()
	SessionEnded()
	EchoRequested()
	ReplyReceived()
	ErrorReceived()
	EchoTimedOut()
	AddSample(rtt time.Duration)

	GetStartTime() (time.Time, bool)
	GetEndTime() (time.Time, bool)

	GetTotalSent() uint32
	GetTotalRecv() uint32
	GetTotalErrors() uint32
	GetTotalTimedOut() uint32
	GetPktLoss() float64

	GetRTTMin() float64
	GetRTTMax() float64
	GetRTTAvg() float64
	GetRTTMDev() float64

	Report() *Report
}

// Report is the summary of a session. Round-trip times are in milliseconds and only
// meaningful when HasRTT is set.
type Report struct {
	Transmitted uint32
	Received    uint32
	Errors      uint32
	Loss        float64 // percent
	Elapsed     time.Duration

	HasRTT bool
	Min    float64
	Avg    float64
	Max    float64
	StdDev float64
}

// statistics aggregate stats about a session
type statistics struct {

	// totalSent is the total amount of echo requests sent in this session.
	totalSent uint32

	// totalRecv is the total amount of matching echo replies received in this session.
	totalRecv uint32

	// totalErrors is the total amount of ICMP errors and unrecognized messages received.
	totalErrors uint32

	// totalTimedOut is the total amount of echo requests that timed out before receiving a reply.
	totalTimedOut uint32

	// rttsMutex guards the samples
	rttsMutex sync.RWMutex

	// count is the number of round-trip samples
	count int

	rttsMin   float64
	rttsMax   float64
	rttsSum   float64
	rttsSqSum float64

	// timeMutex controls updates to the times
	timeMutex sync.RWMutex

	stTime  time.Time
	started bool
	endTime time.Time
	ended   bool
}

// NewStatistics creates and initializes a Statistics struct.
func NewStatistics() Statistics {
	return &statistics{
		rttsMin: math.Inf(1),
		rttsMax: math.Inf(-1),
	}
}

func (s *statistics) SessionStarted() {
	s.timeMutex.Lock()
	defer s.timeMutex.Unlock()

	s.stTime = time.Now()
	s.started = true
}

func (s *statistics) SessionEnded() {
	s.timeMutex.Lock()
	defer s.timeMutex.Unlock()

	s.endTime = time.Now()
	s.ended = true
}

func (s *statistics) EchoRequested() {
	atomic.AddUint32(&s.totalSent, 1)
}

func (s *statistics) ReplyReceived() {
	atomic.AddUint32(&s.totalRecv, 1)
}

func (s *statistics) ErrorReceived() {
	atomic.AddUint32(&s.totalErrors, 1)
}

func (s *statistics) EchoTimedOut() {
	atomic.AddUint32(&s.totalTimedOut, 1)
}

// AddSample records the round-trip time of a matched echo reply.
func (s *statistics) AddSample(rtt time.Duration) {
	ms := float64(rtt) / float64(time.Millisecond)

	s.rttsMutex.Lock()
	defer s.rttsMutex.Unlock()

	s.count++
	s.rttsMin = math.Min(s.rttsMin, ms)
	s.rttsMax = math.Max(s.rttsMax, ms)
	s.rttsSum += ms
	s.rttsSqSum += ms * ms
}

func (s *statistics) GetStartTime() (time.Time, bool) {
	s.timeMutex.RLock()
	defer s.timeMutex.RUnlock()

	return s.stTime, s.started
}

func (s *statistics) GetEndTime() (time.Time, bool) {
	s.timeMutex.RLock()
	defer s.timeMutex.RUnlock()

	return s.endTime, s.ended
}

func (s *statistics) GetTotalSent() uint32 {
	return atomic.LoadUint32(&s.totalSent)
}

func (s *statistics) GetTotalRecv() uint32 {
	return atomic.LoadUint32(&s.totalRecv)
}

func (s *statistics) GetTotalErrors() uint32 {
	return atomic.LoadUint32(&s.totalErrors)
}

func (s *statistics) GetTotalTimedOut() uint32 {
	return atomic.LoadUint32(&s.totalTimedOut)
}

// GetPktLoss returns the percentage of echo requests left without a reply.
func (s *statistics) GetPktLoss() float64 {
	sent := s.GetTotalSent()
	if sent == 0 {
		return 0
	}

	return 100 * float64(sent-s.GetTotalRecv()) / float64(sent)
}

func (s *statistics) GetRTTMin() float64 {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	if s.count == 0 {
		return 0
	}
	return s.rttsMin
}

func (s *statistics) GetRTTMax() float64 {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	if s.count == 0 {
		return 0
	}
	return s.rttsMax
}

func (s *statistics) GetRTTAvg() float64 {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	return s.avg()
}

func (s *statistics) GetRTTMDev() float64 {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	return s.mdev()
}

func (s *statistics) avg() float64 {
	if s.count == 0 {
		return 0
	}
	return s.rttsSum / float64(s.count)
}

func (s *statistics) mdev() float64 {
	if s.count == 0 {
		return 0
	}

	avg := s.avg()
	// rounding can push the variance of identical samples slightly below zero
	return math.Sqrt(math.Max(0, s.rttsSqSum/float64(s.count)-avg*avg))
}

// Report builds the summary of the session from the current counters.
func (s *statistics) Report() *Report {
	r := &Report{
		Transmitted: s.GetTotalSent(),
		Received:    s.GetTotalRecv(),
		Errors:      s.GetTotalErrors(),
		Loss:        s.GetPktLoss(),
	}

	st, started := s.GetStartTime()
	end, ended := s.GetEndTime()
	if started && ended {
		r.Elapsed = end.Sub(st)
	}

	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	if s.count > 0 {
		r.HasRTT = true
		r.Min = s.rttsMin
		r.Max = s.rttsMax
		r.Avg = s.avg()
		r.StdDev = s.mdev()
	}

	return r
}
