package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/shiftledger/cmd/report"
	"github.com/tphakala/shiftledger/cmd/run"
	"github.com/tphakala/shiftledger/cmd/schedule"
	"github.com/tphakala/shiftledger/cmd/status"
	"github.com/tphakala/shiftledger/internal/buildinfo"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/logger"
)

const sentryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand() *cobra.Command {
	settings := &conf.Settings{}
	build := buildinfo.Current()
	var (
		configFile string
		central    *logger.CentralLogger
		sentryOn   bool
	)

	rootCmd := &cobra.Command{
		Use:          "shiftledger",
		Short:        "Weekly attendance ledger and promotion batch",
		Version:      build.String(),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config.yaml")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding debug flag: %v", err))
	}

	rootCmd.AddCommand(
		run.Command(settings),
		schedule.Command(settings),
		status.Command(settings),
		report.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded

		central, err = initLogger(settings)
		if err != nil {
			return err
		}
		sentryOn, err = initSentry(settings, build)
		return err
	}

	// Finalizers also run when a command fails, so queued error reports are sent.
	cobra.OnFinalize(func() {
		if sentryOn {
			errors.FlushSentry(sentryFlushTimeout)
		}
		if central != nil {
			_ = central.Close()
		}
	})

	return rootCmd
}

// initLogger installs the global logger described by settings.
func initLogger(settings *conf.Settings) (*logger.CentralLogger, error) {
	level := settings.Logging.Level
	if settings.Debug {
		level = "debug"
	}
	central, err := logger.NewCentralLogger(logger.Config{
		Level:    level,
		Console:  settings.Logging.Console,
		JSON:     settings.Logging.JSON,
		Timezone: settings.Location(),
		File: logger.FileOutput{
			Enabled:    settings.Logging.File.Enabled,
			Path:       settings.Logging.File.Path,
			MaxSize:    settings.Logging.File.MaxSize,
			MaxAge:     settings.Logging.File.MaxAge,
			MaxBackups: settings.Logging.File.MaxBackups,
			Compress:   settings.Logging.File.Compress,
		},
	})
	if err != nil {
		return nil, errors.New(err).
			Component("cmd").
			Category(errors.CategoryConfiguration).
			Build()
	}
	logger.SetGlobal(central)
	return central, nil
}

func initSentry(settings *conf.Settings, build *buildinfo.Context) (bool, error) {
	if !settings.Sentry.Enabled {
		return false, nil
	}
	environment := "production"
	if settings.Debug {
		environment = "debug"
	}
	reporter, err := errors.InitSentry(settings.Sentry.DSN, build.Release(), environment)
	if err != nil {
		return false, err
	}
	errors.SetTelemetryReporter(reporter)
	return true, nil
}
