// Command superstore serves the retail analytics dashboard and offers the
// dataset tooling around it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"superstore/internal/cli"
	"superstore/internal/config"
	applog "superstore/internal/log"
)

var version = "dev"

// app carries what initConfig resolves for the subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *applog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "superstore",
		Short: "Superstore sales analytics dashboard",
		Long: `superstore loads the Superstore orders table from CSV, SQLite or Google Sheets
and serves an interactive dashboard of sales, profit and discount views.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (environment variables override it)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "log format (text, json)")

	root.AddCommand(a.serveCmd())
	root.AddCommand(a.viewsCmd())
	root.AddCommand(a.importCmd())
	root.AddCommand(versionCmd())
	return root
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if a.cfgFile == "" {
		a.cfgFile = os.Getenv("CONFIG_FILE")
	}
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Root().PersistentFlags()
	_ = v.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))
	_ = v.BindPFlag("LOG_FORMAT", flags.Lookup("log-format"))
	bindCommandFlags(v, cmd)

	a.cfg = config.FromViper(v)
	a.logger, err = cli.SetupLogger(a.cfg.LogLevel, a.cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return nil
}

// bindCommandFlags maps subcommand flags onto their config keys so a
// changed flag overrides the environment.
func bindCommandFlags(v *viper.Viper, cmd *cobra.Command) {
	for _, b := range configFlags {
		if f := cmd.Flags().Lookup(b.flag); f != nil {
			_ = v.BindPFlag(b.key, f)
		}
	}
}

var configFlags = []struct{ key, flag string }{
	{"PORT", "port"},
	{"DATA_BACKEND", "backend"},
	{"DATASET_PATH", "dataset"},
	{"DATASET_PATH", "csv"},
	{"SQLITE_DB_PATH", "db"},
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "superstore", version)
		},
	}
}
