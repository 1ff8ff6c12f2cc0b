package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sarchlab/stallscope/eventloop"
	"github.com/sarchlab/stallscope/session"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a sample workload with one slow step.",
	Long: "`demo` runs a chain of timers, futures and continuations. One " +
		"step is slower than the threshold and gets reported.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()

		thresholdMS, _ := flags.GetFloat64("threshold")
		capture, _ := flags.GetBool("capture")
		db, _ := flags.GetString("db")
		record, _ := flags.GetBool("record")
		monitor, _ := flags.GetBool("monitor")
		port, _ := flags.GetInt("monitor-port")
		openBrowser, _ := flags.GetBool("open-browser")
		logEvents, _ := flags.GetBool("log-events")
		slow, _ := flags.GetDuration("slow")
		keepAlive, _ := flags.GetDuration("keep-alive")

		threshold := time.Duration(thresholdMS * float64(time.Millisecond))
		if slow == 0 {
			slow = threshold * 3 / 2
		}

		b := session.MakeBuilder().
			WithThreshold(threshold).
			WithAsyncStackTraces(capture).
			WithReportWriter(cmd.OutOrStdout())

		if record || db != "" {
			b = b.WithRecording(db)
		}

		if monitor || openBrowser || flags.Changed("monitor-port") {
			b = b.WithMonitor(port)
		}

		if openBrowser {
			b = b.WithBrowser()
		}

		if logEvents {
			b = b.WithEventLogging(cmd.ErrOrStderr())
		}

		s, err := b.Build()
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Terminate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Cannot shut down: %v\n", err)
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		page, err := runDemo(ctx, s, slow)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Rendered %s\n", page)

		fmt.Fprintf(cmd.ErrOrStderr(), "Blocked events: %d\n",
			s.Detector().Stats().BlockedEvents)

		if s.Monitor() != nil && keepAlive > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(),
				"Keeping the monitor at %s for %v\n", s.Monitor().URL(), keepAlive)

			select {
			case <-time.After(keepAlive):
			case <-ctx.Done():
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	flags := demoCmd.Flags()
	flags.Float64("threshold", 100, "Report blocks longer than this many milliseconds")
	flags.Bool("capture", false, "Capture the stack of every asynchronous operation")
	flags.String("db", "", "Record blocked events into <db>.sqlite3")
	flags.Bool("record", false, "Record blocked events into a database with a generated name")
	flags.Bool("monitor", false, "Serve the monitoring web page")
	flags.Int("monitor-port", 0, "Port of the monitoring web page, 0 picks a random one")
	flags.Bool("open-browser", false, "Open the monitoring web page in a browser")
	flags.Bool("log-events", false, "Log every operation lifecycle signal")
	flags.Duration("slow", 0, "Duration of the slow step, 1.5x the threshold by default")
	flags.Duration("keep-alive", 0, "Keep the monitor running after the workload ends")
}

// scheduleDemo simulates a request: it is received by a timer, parsed in a
// continuation, and rendered once a lookup future settles. Rendering is the
// slow step. The returned future settles with the rendered page.
func scheduleDemo(s *session.Session, slow time.Duration) *eventloop.Future {
	loop := s.Loop()
	detector := s.Detector()

	detector.Set("request", "demo-1")

	lookup := loop.NewFuture()

	loop.SetTimeout(10*time.Millisecond, func() error {
		loop.QueueContinuation(func() error {
			busyFor(5 * time.Millisecond)
			return nil
		})

		loop.SetTimeout(20*time.Millisecond, func() error {
			lookup.Resolve("user record")
			return nil
		})

		return nil
	})

	page := lookup.
		Then(func(v any) (any, error) {
			busyFor(5 * time.Millisecond)
			return v, nil
		}).
		Then(func(v any) (any, error) {
			renderPage(slow)

			request, _ := detector.Get("request")

			return fmt.Sprintf("%v for %v", v, request), nil
		})

	loop.SetImmediate(func() error {
		busyFor(time.Millisecond)
		return nil
	})

	return page
}

//go:noinline
func renderPage(d time.Duration) {
	busyFor(d)
}

func busyFor(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}

// runDemo is the workload without the command-line plumbing. It returns the
// rendered page.
func runDemo(
	ctx context.Context,
	s *session.Session,
	slow time.Duration,
) (string, error) {
	page := scheduleDemo(s, slow)

	if err := s.Run(ctx); err != nil {
		return "", err
	}

	value, err := page.Result()
	if err != nil {
		return "", err
	}

	return value.(string), nil
}
