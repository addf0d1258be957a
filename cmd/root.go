package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mikaelmello/icmping/core"
	"github.com/spf13/cobra"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// Execute runs the root command with the process arguments and returns the exit status.
func Execute() int {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}

// execute runs the root command with args. opts are passed to the ping session.
func execute(args []string, stdout, stderr io.Writer, opts ...core.SessionOption) int {
	settings := core.DefaultSettings()
	usage := false

	rootCmd := &cobra.Command{
		Use:   "icmping [flags] destination",
		Short: "icmping sends ICMP ECHO_REQUEST packets to network hosts",
		Long: "icmping sends ICMP ECHO_REQUEST packets to an IPv4 host and reports the replies,\n" +
			"the ICMP errors sent back about them and the round-trip statistics.\n" +
			"It needs a raw socket, run it as root or with CAP_NET_RAW.",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if usage {
				cmd.HelpFunc()(cmd, args)
				return nil
			}
			if len(args) == 0 {
				return errors.New("destination address required")
			}
			// the last destination wins
			return run(args[len(args)-1], settings, stdout, opts...)
		},
	}

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stderr)
	rootCmd.SetErr(stderr)

	help := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		usage = true
		help(cmd, args)
	})

	flags := rootCmd.Flags()
	flags.SortFlags = false
	flags.IntVarP(&settings.TTL, "ttl", "t", settings.TTL, "time to live of the outgoing packets")
	flags.BoolVarP(&settings.Verbose, "verbose", "v", settings.Verbose, "dump the headers quoted by ICMP errors")
	flags.Float64VarP(&settings.Interval, "interval", "i", settings.Interval, "seconds to wait between sending each packet")
	flags.IntVarP(&settings.MaxCount, "count", "c", settings.MaxCount, "stop after sending count packets, 0 sends until interrupted")
	flags.Float64VarP(&settings.Timeout, "timeout", "W", settings.Timeout, "seconds to wait for each response, 0 waits until the next interrupt")
	flags.IntVarP(&settings.Deadline, "deadline", "w", settings.Deadline, "seconds before exiting regardless of packets sent or received")
	flags.Uint32Var(&settings.LoggingLevel, "log-level", settings.LoggingLevel, "level of the diagnostics written to stderr, 0 (panic) to 6 (trace)")
	flags.BoolVarP(&usage, "usage", "?", false, "print usage and exit")

	err := rootCmd.Execute()

	switch {
	case err != nil:
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitFatal
	case usage:
		return exitUsage
	}

	return exitOK
}

// run pings dest until the session ends or the process is interrupted.
func run(dest string, settings *core.Settings, out io.Writer, opts ...core.SessionOption) error {
	logger := core.NewLogger(settings.LoggingLevel)

	addr, host, err := resolve(dest)
	if err != nil {
		return err
	}
	logger.Debugf("Resolved %s to %s (%s)", dest, addr, host)

	r, err := newRunner(addr, host, settings, out, opts...)
	if err != nil {
		return err
	}

	r.Start()
	return r.Wait()
}
