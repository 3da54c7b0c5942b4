// Package main is the ohno bot entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crowdigit/oh-no-bot/internal"
	"github.com/crowdigit/oh-no-bot/internal/app/apps"
	"github.com/crowdigit/oh-no-bot/internal/app/cfg"
	"github.com/crowdigit/oh-no-bot/internal/pkg/log"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CLI command definitions.
var (
	logger logrus.FieldLogger = logrus.StandardLogger()

	rootCmd = &cobra.Command{
		Use: "ohno",
		RunE: func(*cobra.Command, []string) error {
			return nil
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Starts the bot and keeps it connected to the gateway.",
		RunE:  runE,
	}

	sendMessageCmd = &cobra.Command{
		Use:   "send-message channel_id message",
		Short: "Posts a message to a channel.",
		Args:  cobra.ExactArgs(2),
		RunE:  runE,
	}

	kickCmd = &cobra.Command{
		Use:   "kick guild_id user_id",
		Short: "Removes a member from a guild.",
		Args:  cobra.ExactArgs(2),
		RunE:  runE,
	}

	deleteMessageCmd = &cobra.Command{
		Use:   "delete-message channel_id message_id",
		Short: "Deletes a message from a channel.",
		Args:  cobra.ExactArgs(2),
		RunE:  runE,
	}
)

func newApp(_ context.Context, cmd *cobra.Command, args []string) (apps.App, []string, error) {
	var err error
	var app apps.App
	switch cmd.Name() {
	case "run":
		app, err = apps.NewBotApp(cfg.ConfigPathFromEnv())
		if err != nil {
			return nil, nil, errors.Wrap(err, "new bot app failed")
		}
		return app, nil, nil
	case "send-message", "kick", "delete-message":
		app, err = apps.NewActionApp(cfg.ConfigPathFromEnv())
		if err != nil {
			return nil, nil, errors.Wrap(err, "new action app failed")
		}
		return app, append([]string{cmd.Name()}, args...), nil
	default:
		return nil, nil, fmt.Errorf("unknown command: %s", cmd.Name())
	}
}

func runE(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := chainedCheck(
		ctx,
		envCheck,
	); err != nil {
		return errors.Wrap(err, "chained check failed")
	}
	app, args, err := newApp(ctx, cmd, args)
	if err != nil {
		return errors.Wrapf(err, "new %s app failed", cmd.Name())
	}
	return errors.Wrap(app.Run(ctx, args), "run app failed")
}

func envCheck(ctx context.Context) error {
	err := internal.ValidateEnv()
	if err != nil {
		return errors.Wrap(err, "validate env failed")
	}
	log.SetLogger(internal.LogLevel)
	return nil
}

func chainedCheck(ctx context.Context, checks ...func(context.Context) error) error {
	for _, check := range checks {
		err := check(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func init() {
	err := internal.RegisterCommandFlags(rootCmd, []*internal.Flag{
		&internal.EnvFlag,
		&internal.LogLevelFlag,
		&internal.ConfigPathFlag,
	})
	if err != nil {
		logger.Fatalln(err)
	}

	rootCmd.AddCommand(
		runCmd,
		sendMessageCmd,
		kickCmd,
		deleteMessageCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
