// Package session puts an event loop, a blocking detector and the optional
// recording and monitoring services together.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sarchlab/stallscope/blocking"
	"github.com/sarchlab/stallscope/datarecording"
	"github.com/sarchlab/stallscope/eventloop"
	"github.com/sarchlab/stallscope/monitoring"
)

// A Session owns the services of one observed run.
type Session struct {
	id       string
	loop     *eventloop.Loop
	detector *blocking.Detector

	dataRecorder  datarecording.DataRecorder
	eventRecorder *datarecording.BlockedEventRecorder
	execRecorder  *datarecording.ExecRecorder
	dbFileName    string

	history *monitoring.History
	monitor *monitoring.Monitor

	terminated bool
}

// ID returns the unique ID of the session.
func (s *Session) ID() string {
	return s.id
}

// Loop returns the event loop of the session.
func (s *Session) Loop() *eventloop.Loop {
	return s.loop
}

// Detector returns the blocking detector of the session.
func (s *Session) Detector() *blocking.Detector {
	return s.detector
}

// History returns the recent events, or nil if monitoring is off.
func (s *Session) History() *monitoring.History {
	return s.history
}

// Monitor returns the monitor, or nil if monitoring is off.
func (s *Session) Monitor() *monitoring.Monitor {
	return s.monitor
}

// DBFileName returns the recording database, or an empty string if recording
// is off.
func (s *Session) DBFileName() string {
	return s.dbFileName
}

// Run runs the event loop until it has no work left or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	err := s.loop.Run(ctx)

	if s.eventRecorder != nil {
		s.eventRecorder.Flush()
	}

	return err
}

// Terminate stops the detector and closes the recording and the monitor. It
// returns the errors met while shutting them down. Terminating more than once
// has no effect.
func (s *Session) Terminate() error {
	if s.terminated {
		return nil
	}

	s.terminated = true
	s.detector.Stop()

	var errs []error

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.monitor.StopServer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop monitoring server: %w", err))
		}
	}

	if s.dataRecorder != nil {
		s.execRecorder.End()

		if err := s.dataRecorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close recording database: %w", err))
		}
	}

	return errors.Join(errs...)
}
