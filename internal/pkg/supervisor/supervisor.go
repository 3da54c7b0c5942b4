// Package supervisor rebuilds the gateway engine until interrupted.
//
// The supervisor pre-flights the session start quota once, then runs one
// engine instance per attempt. It does not distinguish clean completion
// from an error: either way the instance is gone and a new one is built,
// so transient faults heal through a full reconnect rather than any
// fine-grained retry.
package supervisor

import (
	"context"
	"time"

	"github.com/crowdigit/oh-no-bot/internal/pkg/config"
	"github.com/crowdigit/oh-no-bot/internal/pkg/rest"
	"github.com/crowdigit/oh-no-bot/internal/pkg/transport"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// ErrSessionQuotaExhausted indicates the server-enforced session start
// quota has no sessions remaining. Fatal: the process never waits out the
// reset window.
var ErrSessionQuotaExhausted = errors.New("no session start remaining")

// Runner is one engine run instance.
type Runner interface {
	Run(ctx context.Context) error
	Stop()
	RunID() uuid.UUID
}

// EngineFactory builds a fresh run instance bound to the current gateway
// material. Instances are never reused.
type EngineFactory func(gatewayURL string, shards int) (Runner, error)

// Bootstrap provides the gateway bootstrap material.
type Bootstrap interface {
	GetGatewayBot(ctx context.Context) (rest.GatewayBot, error)
}

// RESTBootstrap fetches bootstrap material from the HTTP API.
type RESTBootstrap struct {
	Cfg         *config.Config
	Establisher *transport.Establisher
	Client      *rest.Client
}

// GetGatewayBot resolves the API host and performs the gateway bot call.
func (b RESTBootstrap) GetGatewayBot(ctx context.Context) (rest.GatewayBot, error) {
	hosts, err := b.Establisher.Resolve(ctx, b.Cfg.Hostname, "https")
	if err != nil {
		return rest.GatewayBot{}, err
	}
	return b.Client.GetGatewayBot(ctx, hosts)
}

// Supervisor owns the reconnect loop.
type Supervisor struct {
	bootstrap Bootstrap
	factory   EngineFactory
	limiter   *rate.Limiter
}

// Cfg configures a Supervisor.
type Cfg func(*Supervisor) error

// WithBootstrap sets the bootstrap material source.
func WithBootstrap(b Bootstrap) Cfg {
	return func(s *Supervisor) error {
		s.bootstrap = b
		return nil
	}
}

// WithEngineFactory sets the run instance factory.
func WithEngineFactory(f EngineFactory) Cfg {
	return func(s *Supervisor) error {
		s.factory = f
		return nil
	}
}

// WithLimiter sets the reconnect pacing limiter.
func WithLimiter(l *rate.Limiter) Cfg {
	return func(s *Supervisor) error {
		s.limiter = l
		return nil
	}
}

// NewSupervisor creates a new Supervisor with the given configuration.
func NewSupervisor(cfgs ...Cfg) (*Supervisor, error) {
	s := &Supervisor{
		// One fresh attempt every five seconds keeps a flapping gateway
		// from being hammered, with a small burst for the happy path.
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	for _, cfg := range cfgs {
		if err := cfg(s); err != nil {
			return nil, errors.Wrap(err, "apply Supervisor cfg failed")
		}
	}
	if s.bootstrap == nil {
		return nil, errors.New("Supervisor requires a bootstrap")
	}
	if s.factory == nil {
		return nil, errors.New("Supervisor requires an engine factory")
	}
	return s, nil
}

// Run pre-flights the session start quota and loops run instances until the
// context is cancelled. Engine construction failure is fatal.
func (s *Supervisor) Run(ctx context.Context) error {
	material, err := s.bootstrap.GetGatewayBot(ctx)
	if err != nil {
		return errors.Wrap(err, "get gateway bot failed")
	}
	limit := material.SessionStartLimit
	logger.WithFields(logrus.Fields{
		"url":       material.URL,
		"shards":    material.Shards,
		"total":     limit.Total,
		"remaining": limit.Remaining,
	}).Debug("fetched gateway bot material")
	if limit.Remaining == 0 {
		logger.WithField("reset_after_s", limit.ResetAfter/1000).Error("no session is remaining")
		return errors.Wrapf(ErrSessionQuotaExhausted, "try again after %d seconds", limit.ResetAfter/1000)
	}

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
		engine, err := s.factory(material.URL, material.Shards)
		if err != nil {
			return errors.Wrap(err, "initialize engine failed")
		}

		stopWatch := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				engine.Stop()
			case <-stopWatch:
			}
		}()
		err = engine.Run(ctx)
		close(stopWatch)
		if err != nil {
			logger.WithError(err).WithField("run_id", engine.RunID()).Warn("run instance ended")
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
