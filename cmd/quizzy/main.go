// Command quizzy sirve los exámenes y agrupa las tareas de operación:
// emitir links, inspeccionarlos, validar quizzes, migrar y generar secretos.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ydethe/quizzy/internal/config"
	"github.com/ydethe/quizzy/internal/observability/logger"
)

var version = "dev"

type cli struct {
	configPath string
	envFile    string
	out        io.Writer
	cfg        *config.Config
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "quizzy",
		Short:         "Servidor y herramientas de quizzy",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.configPath, "config", envOr("QUIZZY_CONFIG", ""), "Ruta a config.yaml (env QUIZZY_CONFIG); vacío = sólo entorno")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Archivo .env (opcional)")

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.examCmd())
	root.AddCommand(c.quizCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.secretCmd())
	return root
}

func (c *cli) load() error {
	if c.envFile != "" {
		if err := config.LoadDotEnv(c.envFile); err != nil {
			return err
		}
	}
	if c.configPath != "" {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			return fmt.Errorf("config load: %w", err)
		}
		c.cfg = cfg
	} else {
		c.cfg = config.LoadEnv()
	}
	logger.Init(logger.Config{
		Env:         c.cfg.App.Env,
		Level:       c.cfg.App.LogLevel,
		ServiceName: "quizzy",
		Version:     version,
	})
	return nil
}

func main() {
	defer func() { _ = logger.Sync() }()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
