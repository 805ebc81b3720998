package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/config"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/logging"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "patrol-sync",
		Short: "Yandal Patrol report synchronization service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newInitMasterCommand(), newSnapshotCommand())
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the environment is read")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("remote-endpoint", "", "Spreadsheet script endpoint URL")
	flags.Int("poll-interval-seconds", defaults.GetInt("poll.interval_seconds"), "Seconds between polls")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite cache path")
	flags.Bool("offline", defaults.GetBool("offline.enabled"), "Start in offline mode")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "remote.endpoint", "remote-endpoint")
	bindFlag(cmd, "poll.interval_seconds", "poll-interval-seconds")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "offline.enabled", "offline")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	// Without --config every setting comes from flags, env and defaults.
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		return err
	}

	return nil
}

func loadRuntime() (config.AppConfig, *zap.Logger, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	return appConfig, logger, nil
}

func runServer(ctx context.Context) error {
	appConfig, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(signalCtx, appConfig, logger)
	if err != nil {
		return err
	}
	defer app.close()

	return app.run(signalCtx)
}

func newInitMasterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-master",
		Short: "Publish the default master data catalog to the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			app, err := buildApplication(cmd.Context(), appConfig, logger)
			if err != nil {
				return err
			}
			defer app.close()

			return app.initMaster(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func newSnapshotCommand() *cobra.Command {
	var (
		unit string
		from string
		to   string
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Poll the remote store once and print the merged report view as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			app, err := buildApplication(cmd.Context(), appConfig, logger)
			if err != nil {
				return err
			}
			defer app.close()

			return app.snapshot(cmd.Context(), cmd.OutOrStdout(), unit, from, to)
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "", "Only include reports of this unit")
	cmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date (YYYY-MM-DD)")
	return cmd
}

// initMaster publishes the default catalog even in offline mode and adopts it locally.
func (a *application) initMaster(ctx context.Context, out io.Writer) error {
	if a.remote == nil {
		return errors.New("init-master: remote.endpoint is required")
	}
	defaults := masterdata.DefaultCatalog()
	if err := a.remote.UpdateMaster(ctx, defaults); err != nil {
		return err
	}
	a.master.AdoptPublished(ctx, defaults)
	_, err := fmt.Fprintf(out, "published %d units\n", len(defaults))
	return err
}

// snapshot refreshes once; in offline mode it prints the cached view.
func (a *application) snapshot(ctx context.Context, out io.Writer, unit, from, to string) error {
	dateFrom, err := reports.NewDateFilter(from)
	if err != nil {
		return err
	}
	dateTo, err := reports.NewDateFilter(to)
	if err != nil {
		return err
	}

	state, err := a.syncer.Refresh(ctx)
	if err != nil && !a.syncer.Offline() {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		Reports    []reports.Report   `json:"reports"`
		PendingIDs []reports.ReportID `json:"pending_ids"`
		Offline    bool               `json:"offline"`
	}{
		Reports: a.reconciler.View(reports.ViewFilters{
			UnitFilter: unit,
			DateFrom:   dateFrom,
			DateTo:     dateTo,
			Location:   a.reconciler.Location(),
		}),
		PendingIDs: state.PendingIDs,
		Offline:    a.syncer.Offline(),
	})
}
