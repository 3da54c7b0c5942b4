package apps

import (
	"context"
	"fmt"

	"github.com/crowdigit/oh-no-bot/internal/pkg/config"
	"github.com/crowdigit/oh-no-bot/internal/pkg/rest"
	"github.com/crowdigit/oh-no-bot/internal/pkg/transport"
	"github.com/crowdigit/oh-no-bot/internal/pkg/validate"

	"github.com/pkg/errors"
)

// ActionAppCfg configures an ActionApp.
type ActionAppCfg interface {
	ApplyActionApp(*ActionApp) error
}

// ActionApp performs one-shot API actions from the command line.
type ActionApp struct {
	ConfigPath string `validate:"required"`
}

// NewActionApp creates a new ActionApp.
func NewActionApp(cfgs ...ActionAppCfg) (*ActionApp, error) {
	app := &ActionApp{}
	for _, cfg := range cfgs {
		if err := cfg.ApplyActionApp(app); err != nil {
			return nil, errors.Wrap(err, "apply ActionApp cfg failed")
		}
	}
	if err := validate.Validate().Struct(app); err != nil {
		return nil, errors.Wrap(err, "validate ActionApp failed")
	}
	return app, nil
}

// Run performs the action named by args[0] with the remaining arguments.
func (app *ActionApp) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("missing action name")
	}
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "load config failed")
	}
	est, err := transport.NewEstablisher()
	if err != nil {
		return errors.Wrap(err, "create establisher failed")
	}
	client, err := rest.NewClient(
		rest.WithConfig(cfg),
		rest.WithEstablisher(est),
	)
	if err != nil {
		return errors.Wrap(err, "create rest client failed")
	}
	hosts, err := est.Resolve(ctx, cfg.Hostname, "https")
	if err != nil {
		return errors.Wrap(err, "resolve api host failed")
	}

	switch args[0] {
	case "send-message":
		if len(args) != 3 {
			return errors.New("send-message requires a channel id and a message")
		}
		return errors.Wrap(client.SendMessage(ctx, hosts, args[1], args[2]), "send message failed")
	case "kick":
		if len(args) != 3 {
			return errors.New("kick requires a guild id and a user id")
		}
		return errors.Wrap(client.Kick(ctx, hosts, args[1], args[2]), "kick failed")
	case "delete-message":
		if len(args) != 3 {
			return errors.New("delete-message requires a channel id and a message id")
		}
		return errors.Wrap(client.DeleteMessage(ctx, hosts, args[1], args[2]), "delete message failed")
	default:
		return fmt.Errorf("unknown action: %s", args[0])
	}
}
