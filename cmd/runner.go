package cmd

import (
	"context"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikaelmello/icmping/core"
)

// Runner is the struct that is responsible for running the program
type Runner struct {
	session *core.Session
	ctx     context.Context
	cancel  context.CancelFunc
	sigch   chan os.Signal
	endch   chan error
}

// newRunner creates a runner with the initialized values
func newRunner(addr *net.IPAddr, host string, settings *core.Settings, out io.Writer, opts ...core.SessionOption) (*Runner, error) {
	session, err := core.NewSession(addr, host, settings, opts...)
	if err != nil {
		return nil, err
	}

	p := &printer{out: out}
	session.AddStHandler(p.onStart)
	session.AddRtHandler(p.onRoundTrip)
	session.AddEndHandler(p.onEnd)

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		session: session,
		ctx:     ctx,
		cancel:  cancel,
		sigch:   make(chan os.Signal, 1),
		endch:   make(chan error, 1),
	}, nil
}

// Start starts the runner
func (r *Runner) Start() {
	r.handleSignals()

	go func() {
		err := r.session.Run(r.ctx)
		r.endch <- err
	}()
}

// RequestStop requests the stop of the session
func (r *Runner) RequestStop() {
	r.cancel()
}

// Wait blocks the caller until the runner finishes
func (r *Runner) Wait() error {
	err := <-r.endch

	signal.Stop(r.sigch)
	r.cancel()

	return err
}

// handleSignals turns an interrupt or a termination request into a cancellation
func (r *Runner) handleSignals() {
	signal.Notify(r.sigch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-r.sigch:
			r.RequestStop()
		case <-r.ctx.Done():
		}
	}()
}
