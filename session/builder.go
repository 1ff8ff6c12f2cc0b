package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/xid"
	"github.com/sarchlab/stallscope/blocking"
	"github.com/sarchlab/stallscope/datarecording"
	"github.com/sarchlab/stallscope/eventloop"
	"github.com/sarchlab/stallscope/monitoring"
)

// Builder can be used to build a session.
type Builder struct {
	threshold     time.Duration
	thresholdSet  bool
	captureStacks bool
	clock         clock.Clock

	recordingOn    bool
	outputFileName string

	monitorOn   bool
	monitorPort int
	openBrowser bool
	historySize int

	reportWriter io.Writer
	logEvents    io.Writer
	errorHandler func(err error)
}

// MakeBuilder creates a new builder. Recording and monitoring are off by
// default.
func MakeBuilder() Builder {
	return Builder{
		historySize: monitoring.DefaultHistoryCapacity,
	}
}

// WithThreshold sets the detector threshold.
func (b Builder) WithThreshold(threshold time.Duration) Builder {
	b.threshold = threshold
	b.thresholdSet = true

	return b
}

// WithAsyncStackTraces turns creation-time stack capture on.
func (b Builder) WithAsyncStackTraces(enabled bool) Builder {
	b.captureStacks = enabled
	return b
}

// WithClock sets the clock shared by the loop and the detector.
func (b Builder) WithClock(c clock.Clock) Builder {
	b.clock = c
	return b
}

// WithRecording stores blocked events in SQLite. An empty file name picks a
// unique one.
func (b Builder) WithRecording(outputFileName string) Builder {
	b.recordingOn = true
	b.outputFileName = outputFileName

	return b
}

// WithMonitor serves the monitoring web page on port. Zero picks a random
// port.
func (b Builder) WithMonitor(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

// WithBrowser opens the monitoring page once the server is up.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithHistorySize sets how many events the monitor keeps.
func (b Builder) WithHistorySize(n int) Builder {
	b.historySize = n
	return b
}

// WithReportWriter prints every blocked event to w.
func (b Builder) WithReportWriter(w io.Writer) Builder {
	b.reportWriter = w
	return b
}

// WithEventLogging logs every lifecycle signal of the loop to w.
func (b Builder) WithEventLogging(w io.Writer) Builder {
	b.logEvents = w
	return b
}

// WithErrorHandler sets where task errors and subscriber failures go.
func (b Builder) WithErrorHandler(handler func(err error)) Builder {
	b.errorHandler = handler
	return b
}

func (b Builder) parametersMustBeValid() error {
	if b.openBrowser && !b.monitorOn {
		return errors.New("session: the browser requires the monitor")
	}

	return nil
}

// Build creates a session whose detector is already started.
func (b Builder) Build() (*Session, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	s := &Session{id: xid.New().String()}

	s.loop = eventloop.NewLoop()
	if b.clock != nil {
		s.loop.WithClock(b.clock)
	}

	if b.errorHandler != nil {
		s.loop.WithErrorHandler(b.errorHandler)
	}

	if b.logEvents != nil {
		s.loop.AcceptHook(eventloop.NewEventLogger(log.New(b.logEvents, "", 0)))
	}

	detector, err := b.buildDetector(s.loop)
	if err != nil {
		return nil, err
	}

	s.detector = detector

	if b.reportWriter != nil {
		w := b.reportWriter
		detector.OnBlocked(func(evt blocking.BlockedEvent) {
			fmt.Fprintln(w, evt.String())
		})
	}

	if b.recordingOn {
		b.buildRecording(s)
	}

	if b.monitorOn {
		if err := b.buildMonitor(s); err != nil {
			return nil, errors.Join(err, s.Terminate())
		}
	}

	detector.Start()

	return s, nil
}

func (b Builder) buildDetector(loop *eventloop.Loop) (*blocking.Detector, error) {
	db := blocking.MakeBuilder().WithAsyncStackTraces(b.captureStacks)

	if b.thresholdSet {
		db = db.WithThreshold(b.threshold)
	}

	if b.clock != nil {
		db = db.WithClock(b.clock)
	}

	d, err := db.Build(loop)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return d, nil
}

func (b Builder) buildRecording(s *Session) {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "stallscope_" + s.id
	}

	s.dataRecorder = datarecording.New(outputPath)
	s.dbFileName = outputPath + ".sqlite3"

	s.eventRecorder = datarecording.NewBlockedEventRecorder(s.dataRecorder)
	s.detector.OnBlocked(s.eventRecorder.Record)

	s.execRecorder = datarecording.NewExecRecorder(s.dataRecorder)
	s.execRecorder.Start(map[string]string{
		"Session":           s.id,
		"Threshold":         s.detector.Threshold().String(),
		"Async Stack Trace": strconv.FormatBool(b.captureStacks),
	})
}

func (b Builder) buildMonitor(s *Session) error {
	s.history = monitoring.NewHistory(b.historySize)
	s.detector.OnBlocked(s.history.Record)

	s.monitor = monitoring.NewMonitor().WithPortNumber(b.monitorPort)
	s.monitor.RegisterLoop(s.loop)
	s.monitor.RegisterDetector(s.detector)
	s.monitor.RegisterHistory(s.history)

	if err := s.monitor.StartServer(); err != nil {
		return err
	}

	if b.openBrowser {
		if err := s.monitor.OpenInBrowser(); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return nil
}
