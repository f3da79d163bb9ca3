// Package sync keeps the message store session alive in the background
// and reports its connection state to the UI.
package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/draftmail/internal/mailstore"
)

// State is the connection state of the store session.
type State int

const (
	StateUnknown State = iota
	StateConnected
	StateAuthFailed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthFailed:
		return "auth failed"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Status is the result of the most recent ping.
type Status struct {
	State    State
	LastPing time.Time
	Error    error
}

// StatusMsg is a tea.Msg sent after every ping.
type StatusMsg struct {
	Status
}

// pingTimeout bounds a single NOOP round trip.
const pingTimeout = 15 * time.Second

// KeepAlive pings a store session on a fixed interval. Failed pings drop
// the session; the next ping or fetch reconnects.
type KeepAlive struct {
	pinger   mailstore.Pinger
	interval time.Duration
	logger   *slog.Logger

	statusCh  chan StatusMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	running bool
	status  Status
}

// New creates a KeepAlive for pinger. A non-positive interval defaults
// to one minute.
func New(pinger mailstore.Pinger, interval time.Duration, logger *slog.Logger) *KeepAlive {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeepAlive{
		pinger:    pinger,
		interval:  interval,
		logger:    logger,
		statusCh:  make(chan StatusMsg, 4),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the ping loop and returns a command that delivers the
// first StatusMsg. It returns nil if the loop is already running. A
// stopped KeepAlive may be started again.
func (k *KeepAlive) Start() tea.Cmd {
	k.mu.Lock()
	if k.running {
		k.mu.Unlock()
		return nil
	}
	k.running = true
	k.stopCh = make(chan struct{})
	stop := k.stopCh
	k.mu.Unlock()

	go k.loop(stop)

	return k.WaitForNextStatus()
}

// Stop halts the ping loop.
func (k *KeepAlive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		return
	}
	close(k.stopCh)
	k.running = false
}

// PingNow requests an immediate ping.
func (k *KeepAlive) PingNow() {
	select {
	case k.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the most recent status.
func (k *KeepAlive) Status() Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.status
}

// WaitForNextStatus returns a tea.Cmd that waits for the next ping
// result. Call it again after handling a StatusMsg to keep listening.
func (k *KeepAlive) WaitForNextStatus() tea.Cmd {
	k.mu.Lock()
	stop := k.stopCh
	k.mu.Unlock()

	return func() tea.Msg {
		select {
		case msg := <-k.statusCh:
			return msg
		case <-stop:
			return nil
		}
	}
}

func (k *KeepAlive) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	k.ping()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			k.ping()
		case <-k.triggerCh:
			k.ping()
		}
	}
}

func (k *KeepAlive) ping() {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	err := k.pinger.Ping(ctx)

	k.mu.Lock()
	k.status.Error = err
	switch {
	case err == nil:
		k.status.State = StateConnected
		k.status.LastPing = time.Now()
	case mailstore.IsAuthError(err):
		k.status.State = StateAuthFailed
	default:
		k.status.State = StateDisconnected
	}
	status := k.status
	k.mu.Unlock()

	if err != nil {
		k.logger.Warn("store keep-alive failed", "error", err)
	}

	// Drop if the UI has not drained the previous results.
	select {
	case k.statusCh <- StatusMsg{Status: status}:
	default:
	}
}
