// Command coretrim reads a kernel core dump from stdin (or a file) and
// writes a trimmed core plus auxv and maps files for minidump generation.
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/coretrim/coretrim"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		output  string
		procDir string
		maxSize string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "coretrim [core-file]",
		Short: "Rewrite a kernel core dump into a trimmed core for minidump generation",
		Long: `coretrim consumes a raw kernel core dump exactly once, drops the LOAD
segments that are backed by mapped files, and writes the trimmed core
together with auxv and maps files replicating the crashed process's
/proc entries. The input is read from stdin unless a file is given; in
either case it is read strictly forward, so a pipe works.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
			if verbose {
				logger = level.NewFilter(logger, level.AllowDebug())
			} else {
				logger = level.NewFilter(logger, level.AllowInfo())
			}

			src := os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			w := coretrim.NewCoredumpWriter(src, output, procDir, logger)
			if maxSize != "" {
				n, err := humanize.ParseBytes(maxSize)
				if err != nil {
					return fmt.Errorf("invalid --max-size: %w", err)
				}
				w.SetSizeLimit(n)
			}

			size, err := w.WriteCoredump()
			if err != nil {
				level.Error(logger).Log("msg", "coredump rewrite failed", "err", err)
				return err
			}
			level.Info(logger).Log("msg", "coredump written",
				"path", output, "size", humanize.IBytes(size))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "path of the trimmed core file (must not exist)")
	cmd.Flags().StringVar(&procDir, "proc-dir", ".", "directory for the auxv and maps files")
	cmd.Flags().StringVar(&maxSize, "max-size", "", "override the free-space-derived size limit (e.g. 64MiB)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log layout details")
	cmd.MarkFlagRequired("output")

	return cmd
}
