package gateway

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"github.com/crowdigit/oh-no-bot/internal/pkg/config"
	"github.com/crowdigit/oh-no-bot/internal/pkg/log"
	"github.com/crowdigit/oh-no-bot/internal/pkg/session"

	"github.com/pkg/errors"
)

// DefaultIntents subscribes to guild and guild message events.
const DefaultIntents = 1<<0 | 1<<9

// State is the narrow mutation surface the dispatch handler is allowed to
// touch on the engine: the heartbeat interval, the three session signals,
// and frame sends.
type State interface {
	SetHeartbeatInterval(interval time.Duration)
	SetEventSequence(seq uint64)
	SetSessionID(id string)
	StartResuming()
	StopResuming()
	Session() session.Session
	Beat(ctx context.Context) error
	Send(ctx context.Context, payload interface{}) error
}

// Dispatcher decodes inbound frames and feeds session signals back into the
// engine. A returned error ends the current run instance.
type Dispatcher interface {
	HandleFrame(ctx context.Context, state State, frame []byte) error
}

// Handler is the opcode dispatch handler.
type Handler struct {
	cfg        *config.Config
	shardCount int
	intents    int
}

// HandlerCfg configures a Handler.
type HandlerCfg func(*Handler) error

// WithHandlerConfig sets the bot configuration.
func WithHandlerConfig(cfg *config.Config) HandlerCfg {
	return func(h *Handler) error {
		h.cfg = cfg
		return nil
	}
}

// WithShardCount sets the shard count advertised on identify.
func WithShardCount(n int) HandlerCfg {
	return func(h *Handler) error {
		h.shardCount = n
		return nil
	}
}

// WithIntents sets the intents advertised on identify.
func WithIntents(intents int) HandlerCfg {
	return func(h *Handler) error {
		h.intents = intents
		return nil
	}
}

// NewHandler creates a new Handler with the given configuration.
func NewHandler(cfgs ...HandlerCfg) (*Handler, error) {
	h := &Handler{
		shardCount: 1,
		intents:    DefaultIntents,
	}
	for _, cfg := range cfgs {
		if err := cfg(h); err != nil {
			return nil, errors.Wrap(err, "apply Handler cfg failed")
		}
	}
	if h.cfg == nil {
		return nil, errors.New("Handler requires a configuration")
	}
	return h, nil
}

// HandleFrame decodes one inbound frame and applies it to the engine state.
func (h *Handler) HandleFrame(ctx context.Context, state State, frame []byte) error {
	var f Frame
	if err := json.Unmarshal(frame, &f); err != nil {
		return errors.Wrap(err, "decode gateway frame failed")
	}
	var seq uint64
	if f.Sequence != nil {
		seq = *f.Sequence
	}
	logger.WithFields(log.FrameToFields(f.Op, f.Event, seq)).Debug("received frame")

	switch f.Op {
	case OpHello:
		return h.handleHello(ctx, state, f.Data)
	case OpDispatch:
		return h.handleDispatch(state, f)
	case OpHeartbeat:
		// The gateway may request an immediate beat.
		return state.Beat(ctx)
	case OpHeartbeatAck:
		logger.Debug("heartbeat acknowledged")
		return nil
	case OpReconnect:
		state.StartResuming()
		return ErrReconnectRequested
	case OpInvalidSession:
		return h.handleInvalidSession(state, f.Data)
	default:
		logger.WithField("op", f.Op).Debug("ignoring frame")
		return nil
	}
}

func (h *Handler) handleHello(ctx context.Context, state State, data json.RawMessage) error {
	var hello helloData
	if err := json.Unmarshal(data, &hello); err != nil {
		return errors.Wrap(err, "decode hello failed")
	}
	state.SetHeartbeatInterval(time.Duration(hello.HeartbeatInterval) * time.Millisecond)

	sess := state.Session()
	if sess.CanResume() {
		logger.WithField("session", sess.String()).Info("resuming session")
		return state.Send(ctx, resumePayload{
			Op: OpResume,
			Data: resumeData{
				Token:     h.cfg.Token,
				SessionID: sess.ID,
				Sequence:  sess.LastSequence,
			},
		})
	}

	// A fresh identify supersedes any half-formed resume intent.
	state.StopResuming()
	logger.Info("identifying")
	return state.Send(ctx, identifyPayload{
		Op: OpIdentify,
		Data: identifyData{
			Token: h.cfg.Token,
			Properties: identifyProperties{
				OS:      runtime.GOOS,
				Browser: "oh-no-bot",
				Device:  "oh-no-bot",
			},
			Compress:       false,
			LargeThreshold: 250,
			Shard:          [2]int{0, h.shardCount},
			Intents:        h.intents,
		},
	})
}

func (h *Handler) handleDispatch(state State, f Frame) error {
	if f.Sequence != nil {
		state.SetEventSequence(*f.Sequence)
	}
	switch f.Event {
	case EventReady:
		var ready readyData
		if err := json.Unmarshal(f.Data, &ready); err != nil {
			return errors.Wrap(err, "decode ready failed")
		}
		state.SetSessionID(ready.SessionID)
		state.StopResuming()
		logger.WithField("session_id", ready.SessionID).Info("session is ready")
	case EventResumed:
		state.StopResuming()
		logger.Info("session resumed")
	}
	return nil
}

func (h *Handler) handleInvalidSession(state State, data json.RawMessage) error {
	var resumable bool
	if err := json.Unmarshal(data, &resumable); err != nil {
		return errors.Wrap(err, "decode invalid session failed")
	}
	if resumable {
		state.StartResuming()
	} else {
		state.StopResuming()
		state.SetSessionID("")
	}
	return errors.Wrapf(ErrSessionInvalidated, "resumable %t", resumable)
}
