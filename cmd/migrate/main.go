package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fdg312/sugarcheck/internal/config"
	"github.com/fdg312/sugarcheck/internal/dbmigrate"
	"github.com/fdg312/sugarcheck/internal/logger"
)

var (
	migrationsDir string
	requireDirect bool
)

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply SugarCheck database migrations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "", "migrations directory (default: embedded)")
	rootCmd.PersistentFlags().BoolVar(&requireDirect, "require-direct", false, "only accept DATABASE_URL_DIRECT")

	for _, c := range []struct {
		name  string
		short string
	}{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the latest migration"},
		{"status", "Print the status of all migrations"},
		{"version", "Print the current schema version"},
		{"redo", "Roll back and re-apply the latest migration"},
	} {
		command := c.name
		rootCmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, command)
			},
		})
	}
}

func run(cmd *cobra.Command, command string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl, err := logger.New(cfg.LogLevel, "console", "sugarcheck-migrate")
	if err != nil {
		return err
	}
	defer zl.Sync()

	sel, err := dbmigrate.SelectDatabaseURL(cfg, requireDirect)
	if err != nil {
		return err
	}
	if sel.Warning != "" {
		zl.Warn(sel.Warning)
	}
	zl.Info("migrate", zap.String("command", command), zap.String("using", sel.Source))

	opts := dbmigrate.Options{Dir: migrationsDir, Logger: logger.Printf{L: zl}}
	if err := dbmigrate.Run(cmd.Context(), command, sel.URL, opts); err != nil {
		return err
	}

	zl.Info("migrate completed", zap.String("command", command))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
