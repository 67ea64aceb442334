// Command usbhsctl exercises the LPC55 USB1 high-speed driver against the
// simulated controller: it prints endpoint buffer layouts, runs a loopback
// transfer between a simulated host and an echo device, and dumps the
// controller SRAM.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ardnew/usbhs/pkg"
	"github.com/ardnew/usbhs/pkg/prof"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose    bool
	json       bool
	logFile    string
	profileDir string
	closer     io.Closer
	session    *prof.Session
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "usbhsctl",
		Short:         "Inspect and exercise the LPC55 USB1 high-speed driver",
		Long:          `usbhsctl runs the LPC55 USB1 driver on a simulated controller`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.setupLogging()
			if opts.profileDir == "" {
				return nil
			}
			if !prof.Enabled() {
				pkg.LogWarn(pkg.ComponentCLI, "profiling not compiled in, rebuild with -tags profile")
			}
			s, err := prof.Start(opts.profileDir)
			if err != nil {
				return err
			}
			opts.session = s
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Log in JSON format")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Write logs to a rotated file instead of stderr")
	root.PersistentFlags().StringVar(&opts.profileDir, "profile-dir", "", "Write pprof profiles to this directory (needs -tags profile)")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newLayoutCmd(), newLoopbackCmd(), newDumpCmd())
	return root
}

func (o *rootOptions) setupLogging() {
	if o.verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if o.json {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}
	if o.logFile != "" {
		o.closer = pkg.SetLogFile(o.logFile, 10, 3)
	}
}

// cleanup stops the profiling session and closes the log file. Cobra skips
// post-run hooks when a command fails, so run calls it after Execute.
func (o *rootOptions) cleanup() error {
	var errs []error
	if o.session != nil {
		errs = append(errs, o.session.Stop())
		o.session = nil
	}
	if o.closer != nil {
		errs = append(errs, o.closer.Close())
		o.closer = nil
	}
	return errors.Join(errs...)
}

// run executes root and releases whatever its persistent hooks acquired.
func run(root *cobra.Command, opts *rootOptions) error {
	err := root.Execute()
	if err != nil {
		pkg.LogError(pkg.ComponentCLI, "command failed", "error", err)
	}
	if cerr := opts.cleanup(); cerr != nil {
		fmt.Fprintln(root.ErrOrStderr(), "usbhsctl: cleanup:", cerr)
		err = errors.Join(err, cerr)
	}
	return err
}

func main() {
	opts := &rootOptions{}
	if err := run(newRootCmd(opts), opts); err != nil {
		os.Exit(1)
	}
}
