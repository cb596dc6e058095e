package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	api "github.com/fanoshome/bingo/go/clients/bingo_api_client"
	"github.com/fanoshome/bingo/go/internal/events"
)

var ErrAlreadyRunning = errors.New("engine monitor already running")

// API is the engine control surface of the backend.
type API interface {
	GetEngineStatus(ctx context.Context) (*api.EngineStatusResponse, error)
	StartEngine(ctx context.Context) (*api.EngineAck, error)
	StopEngine(ctx context.Context) (*api.EngineAck, error)
	RunSingleTick(ctx context.Context) (*api.EngineAck, error)
}

type Config struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	// AutoStartEngine issues one start command the first time the engine is seen not started.
	AutoStartEngine bool
	// SourceID tags published events.
	SourceID       string
	OnStatusChange func(current, previous *api.EngineStatus)
	OnError        func(err error)
}

func DefaultConfig() Config {
	return Config{
		Interval:        2 * time.Second,
		RequestTimeout:  3 * time.Second,
		AutoStartEngine: true,
	}
}

// Status is a point in time view of the monitor.
type Status struct {
	Monitoring bool              `json:"monitoring"`
	LastStatus *api.EngineStatus `json:"last_status"`
	Interval   time.Duration     `json:"interval"`
}

// Monitor watches the backend engine and restarts it once if it was never started.
type Monitor struct {
	api       API
	cfg       Config
	clock     clockwork.Clock
	publisher events.Publisher

	startAttempted atomic.Bool

	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	lastRaw   string
	lastState *api.EngineStatus
}

func NewMonitor(engineAPI API, cfg Config, clock clockwork.Clock, publisher events.Publisher) *Monitor {
	d := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}
	return &Monitor{
		api:       engineAPI,
		cfg:       cfg,
		clock:     clock,
		publisher: publisher,
	}
}

// Start checks immediately and then on every interval until Stop or ctx is done.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.stopChan = make(chan struct{})
	ticker := m.clock.NewTicker(m.cfg.Interval)
	m.wg.Add(1)
	go m.run(ctx, ticker, m.stopChan)
	m.mu.Unlock()

	log.Info().Dur("interval", m.cfg.Interval).Msg("engine monitor started")
	return nil
}

// Stop halts monitoring. No check runs after Stop returns. Safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	log.Info().Msg("engine monitor stopped")
}

func (m *Monitor) run(ctx context.Context, ticker clockwork.Ticker, stop chan struct{}) {
	defer m.wg.Done()
	defer ticker.Stop()

	m.CheckNow(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.Chan():
			m.CheckNow(ctx)
		}
	}
}

func (m *Monitor) monitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// CheckNow fetches the engine status once. It does nothing while the monitor is stopped.
func (m *Monitor) CheckNow(ctx context.Context) {
	if !m.monitoring() {
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	resp, err := m.api.GetEngineStatus(reqCtx)
	cancel()
	if err != nil {
		m.reportError(err)
		return
	}

	raw, err := canonical(resp.Status)
	if err != nil {
		m.reportError(err)
		return
	}
	current, err := resp.Decode()
	if err != nil {
		m.reportError(err)
		return
	}
	if current == nil {
		return
	}

	m.mu.Lock()
	if !m.running || raw == m.lastRaw {
		m.mu.Unlock()
		m.maybeAutoStart(ctx, current)
		return
	}
	previous := m.lastState
	m.lastRaw = raw
	m.lastState = current
	m.mu.Unlock()

	prevName := ""
	if previous != nil {
		prevName = previous.Status
	}
	log.Info().Str("status", current.Status).Str("previous", prevName).Msg("engine status changed")
	if m.cfg.OnStatusChange != nil {
		m.cfg.OnStatusChange(current, previous)
	}
	m.emit(ctx, events.EventTypeEngineStatusChanged, current.Status, prevName)

	m.maybeAutoStart(ctx, current)
}

// maybeAutoStart issues the start command the first time the engine is seen not
// started. Later observations never retry.
func (m *Monitor) maybeAutoStart(ctx context.Context, current *api.EngineStatus) {
	if !m.cfg.AutoStartEngine || current.Status != api.EngineNotStarted {
		return
	}
	if !m.startAttempted.CompareAndSwap(false, true) {
		return
	}

	log.Info().Msg("engine not started, starting it")
	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	ack, err := m.api.StartEngine(reqCtx)
	cancel()
	if err != nil {
		m.reportError(fmt.Errorf("auto start: %w", err))
		return
	}
	if !ack.Success {
		m.reportError(fmt.Errorf("auto start rejected: %s", ack.Error))
		return
	}
	m.emit(ctx, events.EventTypeEngineAutoStarted, api.EngineRunning, current.Status)
}

func (m *Monitor) reportError(err error) {
	log.Warn().Err(err).Msg("engine monitor check failed")
	if m.cfg.OnError != nil {
		m.cfg.OnError(err)
	}
}

func (m *Monitor) emit(ctx context.Context, t events.EventType, status, previous string) {
	event, err := events.NewEvent(t, m.cfg.SourceID, 0, m.clock.Now(), events.EngineStatusPayload{
		Status:         status,
		PreviousStatus: previous,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build engine event")
		return
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", string(t)).Msg("failed to publish engine event")
	}
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	var last *api.EngineStatus
	if m.lastState != nil {
		s := *m.lastState
		last = &s
	}
	return Status{Monitoring: m.running, LastStatus: last, Interval: m.cfg.Interval}
}

// IsRunning reports whether the last observed engine status was running.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastState != nil && m.lastState.Status == api.EngineRunning
}

// StartEngine, StopEngine and Tick are manual controls. Each refreshes the status afterwards.
func (m *Monitor) StartEngine(ctx context.Context) (*api.EngineAck, error) {
	return m.command(ctx, "start", m.api.StartEngine)
}

func (m *Monitor) StopEngine(ctx context.Context) (*api.EngineAck, error) {
	return m.command(ctx, "stop", m.api.StopEngine)
}

func (m *Monitor) Tick(ctx context.Context) (*api.EngineAck, error) {
	return m.command(ctx, "tick", m.api.RunSingleTick)
}

func (m *Monitor) command(ctx context.Context, name string, fn func(context.Context) (*api.EngineAck, error)) (*api.EngineAck, error) {
	ack, err := fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", name, err)
	}
	log.Info().Str("command", name).Bool("success", ack.Success).Msg("engine command sent")
	m.CheckNow(ctx)
	return ack, nil
}

// canonical re-encodes a JSON value with sorted keys so equal statuses compare equal.
func canonical(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("failed to decode engine status: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
