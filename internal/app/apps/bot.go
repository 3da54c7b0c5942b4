package apps

import (
	"context"

	"github.com/crowdigit/oh-no-bot/internal/pkg/config"
	"github.com/crowdigit/oh-no-bot/internal/pkg/gateway"
	"github.com/crowdigit/oh-no-bot/internal/pkg/rest"
	"github.com/crowdigit/oh-no-bot/internal/pkg/session"
	"github.com/crowdigit/oh-no-bot/internal/pkg/supervisor"
	"github.com/crowdigit/oh-no-bot/internal/pkg/transport"
	"github.com/crowdigit/oh-no-bot/internal/pkg/validate"

	"github.com/pkg/errors"
)

// BotAppCfg configures a BotApp.
type BotAppCfg interface {
	ApplyBotApp(*BotApp) error
}

// BotApp is the long-running gateway bot application.
type BotApp struct {
	ConfigPath string `validate:"required"`
}

// NewBotApp creates a new BotApp.
func NewBotApp(cfgs ...BotAppCfg) (*BotApp, error) {
	app := &BotApp{}
	for _, cfg := range cfgs {
		if err := cfg.ApplyBotApp(app); err != nil {
			return nil, errors.Wrap(err, "apply BotApp cfg failed")
		}
	}
	if err := validate.Validate().Struct(app); err != nil {
		return nil, errors.Wrap(err, "validate BotApp failed")
	}
	return app, nil
}

// Run loads the configuration and drives the reconnect supervisor until the
// context is cancelled.
func (app *BotApp) Run(ctx context.Context, args []string) error {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "load config failed")
	}
	est, err := transport.NewEstablisher()
	if err != nil {
		return errors.Wrap(err, "create establisher failed")
	}
	restClient, err := rest.NewClient(
		rest.WithConfig(cfg),
		rest.WithEstablisher(est),
	)
	if err != nil {
		return errors.Wrap(err, "create rest client failed")
	}

	// Session state outlives each run instance so a later connect can resume.
	store := session.NewMemoryStore()

	factory := func(gatewayURL string, shards int) (supervisor.Runner, error) {
		handler, err := gateway.NewHandler(
			gateway.WithHandlerConfig(cfg),
			gateway.WithShardCount(shards),
		)
		if err != nil {
			return nil, errors.Wrap(err, "create dispatch handler failed")
		}
		engine, err := gateway.NewEngine(
			gateway.WithConfig(cfg),
			gateway.WithEstablisher(est),
			gateway.WithSessionStore(store),
			gateway.WithDispatcher(handler),
			gateway.WithGatewayURL(gatewayURL),
		)
		if err != nil {
			return nil, errors.Wrap(err, "create engine failed")
		}
		return engine, nil
	}

	sup, err := supervisor.NewSupervisor(
		supervisor.WithBootstrap(supervisor.RESTBootstrap{
			Cfg:         cfg,
			Establisher: est,
			Client:      restClient,
		}),
		supervisor.WithEngineFactory(factory),
	)
	if err != nil {
		return errors.Wrap(err, "create supervisor failed")
	}
	return errors.Wrap(sup.Run(ctx), "run supervisor failed")
}
