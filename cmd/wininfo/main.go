// Command wininfo prints spectral properties of the window shapes used by
// the stretcher.
//
// Usage:
//
//	wininfo [flags] [window-name ...]
//
// Without arguments it prints info for all known window types.
//
// Examples:
//
//	wininfo hann
//	wininfo --size 4096 hann niemitaloforward
//	wininfo --list
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"

	"github.com/cwbudde/algo-stretch/dsp/window"
)

var errNoWindows = errors.New("no matching window types")

func main() {
	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	size := pflag.Int("size", 2048, "window length in samples")
	list := pflag.Bool("list", false, "list available window names")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: wininfo [flags] [window-name ...]\n\n")
		fmt.Fprintf(os.Stderr, "Prints spectral properties of the stretcher's window shapes.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	defer belt.Flush(ctx)

	if *list {
		printList(os.Stdout)
		return
	}

	types := resolveTypes(ctx, pflag.Args())
	if len(types) == 0 {
		logger.Errorf(ctx, "%v", errNoWindows)
		belt.Flush(ctx)
		os.Exit(1)
	}

	if err := printAnalysis(os.Stdout, types, *size); err != nil {
		logger.Errorf(ctx, "%v", err)
		belt.Flush(ctx)
		os.Exit(1)
	}
}

func printList(w io.Writer) {
	for _, t := range window.Types() {
		fmt.Fprintln(w, strings.ToLower(t.String()))
	}
}

// resolveTypes maps case-insensitive names to window types, skipping
// unknown names. No names selects every type.
func resolveTypes(ctx context.Context, names []string) []window.Type {
	if len(names) == 0 {
		return window.Types()
	}

	var result []window.Type

	for _, name := range names {
		name = strings.TrimSpace(name)

		t, ok := lookup(name)
		if !ok {
			logger.Warnf(ctx, "unknown window %q (use --list to see available)", name)
			continue
		}

		result = append(result, t)
	}

	return result
}

func lookup(name string) (window.Type, bool) {
	for _, t := range window.Types() {
		if strings.EqualFold(t.String(), name) {
			return t, true
		}
	}

	return 0, false
}

func printAnalysis(w io.Writer, types []window.Type, size int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(tw, "Window\tSize\tArea\tRMS\tCoherent Gain\tENBW [bins]\tBW 3dB [bins]\tSidelobe [dB]\tScallop [dB]\n"); err != nil {
		return fmt.Errorf("unable to write output header: %w", err)
	}

	for _, t := range types {
		win, err := window.New(t, size)
		if err != nil {
			return fmt.Errorf("unable to build %v window: %w", t, err)
		}

		a := window.Analyze(win.Values())

		if _, err := fmt.Fprintf(tw, "%s\t%d\t%.6f\t%.6f\t%.6f\t%.4f\t%.4f\t%.2f\t%.4f\n",
			strings.ToLower(t.String()),
			win.Size(),
			win.Area(),
			win.RMS(),
			a.CoherentGain,
			a.ENBW,
			a.Bandwidth3dB,
			a.HighestSidelobedB,
			a.ScallopLossdB,
		); err != nil {
			return fmt.Errorf("unable to write output row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("unable to flush output: %w", err)
	}

	return nil
}
