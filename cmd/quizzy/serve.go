package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ydethe/quizzy/internal/app"
	"github.com/ydethe/quizzy/internal/http/server"
	"github.com/ydethe/quizzy/internal/observability/logger"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	log := logger.Named("main")

	a, err := app.Build(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close", logger.Err(err))
		}
	}()

	if c.cfg.Quizzes.Watch {
		go func() {
			if err := a.WatchQuizzes(ctx); err != nil && ctx.Err() == nil {
				log.Warn("quiz watcher stopped", logger.Err(err))
			}
		}()
	}

	sc, err := app.ServerConfig(c.cfg)
	if err != nil {
		return err
	}
	log.Info("listening",
		logger.String("addr", sc.Addr),
		logger.URL(c.cfg.App.PublicBaseURL),
		logger.Bool("oidc", c.cfg.OIDCEnabled()),
	)
	return server.Run(ctx, sc, a.Handler)
}
