package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/mitchellh/go-wordwrap"
	"resty.dev/v3"

	"github.com/vk/workloop/internal/config"
	"github.com/vk/workloop/internal/ctxlog"
	"github.com/vk/workloop/internal/examplemodules"
	"github.com/vk/workloop/internal/group"
	"github.com/vk/workloop/internal/loop"
	"github.com/vk/workloop/internal/module"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprint(wrap(err.Error())))
		os.Exit(1)
	}
}

func wrap(s string) string {
	return wordwrap.WrapString(s, 88)
}

// run wires a config.LoopProfile, a small demo tree of examplemodules and
// the scheduler core into a bounded run, exactly the way the teacher's
// own cmd/cli main keeps logic in a separately-testable run(outW, args)
// function instead of main itself.
func run(outW io.Writer, args []string) error {
	fs := flag.NewFlagSet("workloop", flag.ContinueOnError)
	fs.SetOutput(outW)
	profilePath := fs.String("profile", "", "path to an HCL loop profile (optional)")
	url := fs.String("url", "https://httpbin.org/get", "URL the demo HTTPModule fetches")
	seconds := fs.String("duration", "2s", "how long the demo loop runs before stopping")
	if err := fs.Parse(args); err != nil {
		return err
	}

	duration, err := time.ParseDuration(*seconds)
	if err != nil {
		return fmt.Errorf("workloop: invalid -duration: %w", err)
	}

	profile := config.Default()
	if *profilePath != "" {
		profile, err = config.Load(*profilePath)
		if err != nil {
			return fmt.Errorf("workloop: loading profile: %w", err)
		}
	}

	ctx := ctxlog.WithLogger(context.Background(), slog.Default())

	predictorRates := module.WithPredictorRates(profile.PredictorFastAlpha, profile.PredictorSlowAlpha)

	fetcher := examplemodules.NewHTTPModule("fetch", examplemodules.NewHTTPClient(),
		examplemodules.HTTPInput{Method: "GET", URL: *url},
		func(resp *resty.Response) error {
			fmt.Fprintf(outW, "%s\n", color.Green.Sprintf("fetched %s -> %s", *url, resp.Status()))
			return nil
		},
		examplemodules.WithHandleException(func(err error) {
			fmt.Fprintln(outW, color.Yellow.Sprint(wrap(err.Error())))
		}),
		examplemodules.WithModuleOptions(predictorRates),
	)

	var reportBuf fileSink
	reporter := examplemodules.NewReportModule("report", &reportBuf, []*module.Module{fetcher}, predictorRates)

	root, err := group.NewSequentialGroup([]group.Member{
		group.OfModule(fetcher),
		group.OfModule(reporter),
	}, group.WithSequentialPredictorRates(profile.PredictorFastAlpha, profile.PredictorSlowAlpha))
	if err != nil {
		return fmt.Errorf("workloop: building topology: %w", err)
	}

	l, err := loop.New(root, loop.WithSmartWaiter(profile.SmartWaiter))
	if err != nil {
		return fmt.Errorf("workloop: attaching loop: %w", err)
	}

	go func() {
		time.Sleep(duration)
		l.StopAndWait()
	}()

	if err := l.Run(ctx, profile.ThreadCount); err != nil {
		return fmt.Errorf("workloop: running: %w", err)
	}

	fmt.Fprintln(outW, color.Cyan.Sprintf("demo loop finished, wrote %d bytes of report data", len(reportBuf.data)))
	return nil
}

// fileSink is an in-process io.Writer standing in for a real sink in the
// demo binary.
type fileSink struct {
	data []byte
}

func (f *fileSink) Write(p []byte) (int, error) {
	f.data = append(f.data, p...)
	return len(p), nil
}
