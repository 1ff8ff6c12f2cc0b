// Package monitoring serves the state of a running detector over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/stallscope/blocking"
	"github.com/sarchlab/stallscope/monitoring/web"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// A LoopController can stop and resume an event loop from another goroutine.
type LoopController interface {
	Pause()
	Continue()
}

// A StatsSource reports the state of a detector.
type StatsSource interface {
	Threshold() time.Duration
	Stats() blocking.Stats
}

// Monitor turns a running session into a server that allows external
// inspection of blocked events and control of the event loop.
type Monitor struct {
	loop       LoopController
	detector   StatsSource
	history    *History
	portNumber int

	profileDuration time.Duration

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor. Zero picks a random
// port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterLoop registers the loop that can be paused from the web page.
func (m *Monitor) RegisterLoop(l LoopController) {
	m.loop = l
}

// RegisterDetector registers the detector whose stats are served.
func (m *Monitor) RegisterDetector(d StatsSource) {
	m.detector = d
}

// RegisterHistory registers where blocked events are read from.
func (m *Monitor) RegisterHistory(h *History) {
	m.history = h
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseLoop)
	r.HandleFunc("/api/continue", m.continueLoop)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/blocked", m.listBlocked)
	r.HandleFunc("/api/blocked/{index}", m.blockedDetails)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() error {
	actualPort := ":" + strconv.Itoa(m.portNumber)

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return fmt.Errorf("monitoring: listen on %s: %w", actualPort, err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "Monitoring event loop with %s\n", m.URL())

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("monitoring: %v", err)
		}
	}()

	return nil
}

// URL returns the address of the web page, or an empty string if the server
// is not running.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenInBrowser opens the web page in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.listener == nil {
		return errors.New("monitoring: server is not running")
	}

	return browser.OpenURL(m.URL())
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	err := m.server.Shutdown(ctx)
	m.server = nil
	m.listener = nil

	return err
}

func (m *Monitor) pauseLoop(w http.ResponseWriter, _ *http.Request) {
	if m.loop == nil {
		http.Error(w, "no loop registered", http.StatusNotFound)
		return
	}

	m.loop.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueLoop(w http.ResponseWriter, _ *http.Request) {
	if m.loop == nil {
		http.Error(w, "no loop registered", http.StatusNotFound)
		return
	}

	m.loop.Continue()
	w.WriteHeader(http.StatusOK)
}

type statsRsp struct {
	ThresholdMS   int64          `json:"threshold_ms"`
	Detector      blocking.Stats `json:"detector"`
	EventsTotal   int            `json:"events_total"`
	EventsRetired int            `json:"events_retired"`
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	rsp := statsRsp{}

	if m.detector != nil {
		rsp.ThresholdMS = m.detector.Threshold().Milliseconds()
		rsp.Detector = m.detector.Stats()
	}

	if m.history != nil {
		rsp.EventsTotal = m.history.Total()
		rsp.EventsRetired = rsp.EventsTotal - len(m.history.Events())
	}

	writeJSON(w, rsp)
}

type blockedSummary struct {
	Index         int       `json:"index"`
	ID            string    `json:"id"`
	OperationID   uint64    `json:"operation_id"`
	OperationType string    `json:"operation_type"`
	DetectedAt    time.Time `json:"detected_at"`
	DurationMS    int64     `json:"duration_ms"`
	NumSegments   int       `json:"num_segments"`
	Report        string    `json:"report"`
}

func (m *Monitor) listBlocked(w http.ResponseWriter, _ *http.Request) {
	summaries := make([]blockedSummary, 0)

	if m.history != nil {
		for i, evt := range m.history.Events() {
			summaries = append(summaries, blockedSummary{
				Index:         i,
				ID:            evt.ID,
				OperationID:   uint64(evt.OperationID),
				OperationType: evt.OperationType,
				DetectedAt:    evt.DetectedAt,
				DurationMS:    evt.DurationMS(),
				NumSegments:   len(evt.Stacks),
				Report:        evt.String(),
			})
		}
	}

	writeJSON(w, summaries)
}

// blockedDetail is the shape walked by the serializer for a single event.
type blockedDetail struct {
	ID            string
	OperationID   uint64
	OperationType string
	DetectedAt    string
	DurationMS    int64
	Stacks        [][]frameDetail
}

type frameDetail struct {
	Function string
	Package  string
	File     string
	Line     int
	Text     string
}

func newBlockedDetail(evt blocking.BlockedEvent) *blockedDetail {
	d := &blockedDetail{
		ID:            evt.ID,
		OperationID:   uint64(evt.OperationID),
		OperationType: evt.OperationType,
		DetectedAt:    evt.DetectedAt.Format(time.RFC3339Nano),
		DurationMS:    evt.DurationMS(),
		Stacks:        make([][]frameDetail, 0, len(evt.Stacks)),
	}

	for _, segment := range evt.Stacks {
		frames := make([]frameDetail, 0, len(segment))
		for _, f := range segment {
			frames = append(frames, frameDetail{
				Function: f.Function,
				Package:  f.Package,
				File:     f.File,
				Line:     f.Line,
				Text:     f.Text,
			})
		}

		d.Stacks = append(d.Stacks, frames)
	}

	return d
}

// blockedDetails serializes one event. The optional "field" query parameter
// selects a part of it, for example "Stacks.0".
func (m *Monitor) blockedDetails(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}

	if m.history == nil {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}

	evt, ok := m.history.Get(index)
	if !ok {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(newBlockedDetail(evt))
	serializer.SetMaxDepth(4)

	if field := r.URL.Query().Get("field"); field != "" {
		err = serializer.SetEntryPoint(strings.Split(field, "."))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
