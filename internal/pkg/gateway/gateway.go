// Package gateway implements the gateway session engine.
//
// One Engine owns one WebSocket stream, the heartbeat timer and the session
// state for a single run instance. All engine state is mutated from the run
// loop goroutine only; the reader goroutine does nothing but move frames
// into a channel, so no locks guard the session machinery. When the engine
// ends, for any reason, the stream is torn down and the reconnect supervisor
// decides whether to build a new instance.
package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crowdigit/oh-no-bot/internal/pkg/config"
	"github.com/crowdigit/oh-no-bot/internal/pkg/session"
	"github.com/crowdigit/oh-no-bot/internal/pkg/transport"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// Socket is the wire surface the engine needs from an upgraded stream.
type Socket interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, p []byte) error
	Disconnect()
}

type wsSocket struct {
	gs *transport.GatewayStream
}

func (s *wsSocket) Read(ctx context.Context) ([]byte, error) {
	_, b, err := s.gs.Read(ctx)
	return b, err
}

func (s *wsSocket) Write(ctx context.Context, p []byte) error {
	return s.gs.Write(ctx, websocket.MessageText, p)
}

func (s *wsSocket) Disconnect() {
	s.gs.Disconnect()
}

// Engine is one run instance of the gateway session state machine.
type Engine struct {
	cfg         *config.Config
	establisher *transport.Establisher
	store       session.Store
	dispatcher  Dispatcher
	gatewayURL  string
	runID       uuid.UUID

	socket            Socket
	heartbeatInterval time.Duration
	timer             *time.Timer
	timerC            <-chan time.Time
	running           atomic.Bool
	stop              chan struct{}
	stopOnce          sync.Once
	teardownOnce      sync.Once
}

// Cfg configures an Engine.
type Cfg func(*Engine) error

// WithConfig sets the bot configuration.
func WithConfig(cfg *config.Config) Cfg {
	return func(e *Engine) error {
		e.cfg = cfg
		return nil
	}
}

// WithEstablisher sets the transport establisher used to connect.
func WithEstablisher(est *transport.Establisher) Cfg {
	return func(e *Engine) error {
		e.establisher = est
		return nil
	}
}

// WithSessionStore sets the session store shared across run instances.
func WithSessionStore(store session.Store) Cfg {
	return func(e *Engine) error {
		e.store = store
		return nil
	}
}

// WithDispatcher sets the frame dispatch handler.
func WithDispatcher(d Dispatcher) Cfg {
	return func(e *Engine) error {
		e.dispatcher = d
		return nil
	}
}

// WithGatewayURL sets the gateway URL reported by the API.
func WithGatewayURL(url string) Cfg {
	return func(e *Engine) error {
		e.gatewayURL = url
		return nil
	}
}

// WithSocket sets an already connected socket, bypassing Connect.
func WithSocket(s Socket) Cfg {
	return func(e *Engine) error {
		e.socket = s
		return nil
	}
}

// NewEngine creates a new Engine with the given configuration.
func NewEngine(cfgs ...Cfg) (*Engine, error) {
	e := &Engine{
		runID: uuid.New(),
		stop:  make(chan struct{}),
	}
	for _, cfg := range cfgs {
		if err := cfg(e); err != nil {
			return nil, errors.Wrap(err, "apply Engine cfg failed")
		}
	}
	if e.store == nil {
		return nil, errors.New("Engine requires a session store")
	}
	if e.dispatcher == nil {
		return nil, errors.New("Engine requires a dispatcher")
	}
	if e.socket == nil {
		if e.cfg == nil || e.establisher == nil || e.gatewayURL == "" {
			return nil, errors.New("Engine requires a configuration, establisher and gateway URL")
		}
	}
	return e, nil
}

// RunID identifies this run instance in logs.
func (e *Engine) RunID() uuid.UUID {
	return e.runID
}

// Connect establishes the gateway stream. It sends no identify or resume
// itself; the dispatch handler chooses between them when Hello arrives.
func (e *Engine) Connect(ctx context.Context) error {
	if e.socket != nil {
		return nil
	}
	host := hostFromURL(e.gatewayURL)
	gs, err := e.establisher.UpgradeToGateway(ctx, host, e.cfg.GatewayOption)
	if err != nil {
		return err
	}
	e.socket = &wsSocket{gs: gs}
	return nil
}

// Disconnect tears the stream down and cancels the heartbeat timer.
// Idempotent no-op when already disconnected.
func (e *Engine) Disconnect() {
	e.teardownOnce.Do(func() {
		if e.timer != nil {
			e.timer.Stop()
		}
		if e.socket != nil {
			e.socket.Disconnect()
		}
	})
}

// Stop requests the engine to stop. Safe to invoke from a signal context
// concurrently with in-progress reads and heartbeats.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
}

// IsRunning reports whether the run loop is active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// IsResuming reports whether the next connect intends to resume.
func (e *Engine) IsResuming() bool {
	return e.store.Get().Resuming
}

// Session returns the current session state.
func (e *Engine) Session() session.Session {
	return e.store.Get()
}

// SetHeartbeatInterval records the server-declared heartbeat interval and
// arms the timer. Only meaningful after a completed handshake, which is
// when the dispatch handler calls it.
func (e *Engine) SetHeartbeatInterval(interval time.Duration) {
	e.heartbeatInterval = interval
	if e.timer == nil {
		e.timer = time.NewTimer(interval)
		e.timerC = e.timer.C
	} else {
		e.timer.Reset(interval)
	}
	logger.WithField("interval", interval).Debug("heartbeat timer armed")
}

// SetEventSequence overwrites the last seen event sequence as received.
func (e *Engine) SetEventSequence(seq uint64) {
	e.store.SetSequence(seq)
}

// SetSessionID overwrites the session id as received.
func (e *Engine) SetSessionID(id string) {
	e.store.SetID(id)
}

// StartResuming marks the disconnect in progress as resumable.
func (e *Engine) StartResuming() {
	e.store.SetResuming(true)
}

// StopResuming clears the resume intent.
func (e *Engine) StopResuming() {
	e.store.SetResuming(false)
}

// Beat sends one heartbeat frame carrying the current sequence, or null
// when no event has been seen yet. A send failure is fatal to the run
// instance; it is never retried in place.
func (e *Engine) Beat(ctx context.Context) error {
	sess := e.store.Get()
	var seq *uint64
	if sess.LastSequence > 0 {
		s := sess.LastSequence
		seq = &s
	}
	logger.WithField("seq", sess.LastSequence).Debug("sending heartbeat")
	return e.Send(ctx, heartbeatPayload{Op: OpHeartbeat, Data: seq})
}

// Send marshals and writes one frame to the gateway.
func (e *Engine) Send(ctx context.Context, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload failed")
	}
	if err := e.socket.Write(ctx, raw); err != nil {
		logger.WithError(err).Error("failed to send gateway frame")
		return errors.Wrapf(ErrSend, "%v", err)
	}
	return nil
}

type readResult struct {
	frame []byte
	err   error
}

// listen issues one read at a time and hands each completed frame to the
// run loop. It ends when the stream closes or a read fails.
func (e *Engine) listen(ctx context.Context, frames chan<- readResult) {
	for {
		frame, err := e.socket.Read(ctx)
		select {
		case frames <- readResult{frame: frame, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Run connects if needed and drives the read and heartbeat loops until the
// engine is stopped or an unrecoverable error ends the run instance.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Connect(ctx); err != nil {
		return errors.Wrap(err, "connect to gateway failed")
	}
	e.running.Store(true)
	defer e.running.Store(false)
	defer e.Disconnect()

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	frames := make(chan readResult)
	go e.listen(readCtx, frames)

	logger.WithField("run_id", e.runID).Info("listening for gateway events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.stop:
			return nil
		case r := <-frames:
			if r.err != nil {
				if e.stopped() {
					logger.Debug("stream closing")
					return nil
				}
				logger.WithError(r.err).Error("failed to receive gateway frame")
				return errors.Wrapf(ErrReceive, "%v", r.err)
			}
			if err := e.dispatcher.HandleFrame(ctx, e, r.frame); err != nil {
				return errors.Wrap(err, "handle frame failed")
			}
		case <-e.timerC:
			// A queued tick can race a concurrent stop; re-check here,
			// not only at schedule time.
			if e.stopped() {
				continue
			}
			if err := e.Beat(ctx); err != nil {
				return err
			}
			e.timer.Reset(e.heartbeatInterval)
		}
	}
}

func (e *Engine) stopped() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

func hostFromURL(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[i+3:]
	}
	return url
}
