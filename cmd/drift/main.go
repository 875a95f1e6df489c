package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/filedrift/drift/internal/config"
	"github.com/filedrift/drift/internal/daemon"
	"github.com/filedrift/drift/internal/store"
	"github.com/filedrift/drift/internal/syncer"
	"github.com/filedrift/drift/internal/version"
	"github.com/filedrift/drift/internal/workspace"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var rootCmd = &cobra.Command{
	Use:     "drift",
	Short:   "Drift keeps a local file tree in sync with a remote content store",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromViper()
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		showHeader()
		slog.Info("drift", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

		ws, engine, cleanup, err := buildEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		watcher := syncer.NewFileWatcher(ws.Root)
		d := daemon.New(engine, watcher, cfg.SyncInterval)

		defer slog.Info("Bye!")
		return d.Run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Drift config file")
	rootCmd.PersistentFlags().StringP("datadir", "d", config.DefaultDataDir, "Local directory to sync")
	rootCmd.PersistentFlags().String("strategy", "", "Conflict strategy: copy, local-wins, remote-wins")
	rootCmd.PersistentFlags().Duration("interval", 0, "Interval between sync cycles")
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	logWriter := &lumberjack.Logger{
		Filename:   filepath.Join(home, ".drift", "logs", "drift.log"),
		MaxSize:    10, // MiB
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	slog.SetDefault(slog.New(newMultiHandler(stdoutHandler, fileHandler)))
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".drift"))
		viper.AddConfigPath(filepath.Join(home, ".config/drift"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("conflict_strategy", cmd.Flags().Lookup("strategy"))
	viper.BindPFlag("sync_interval", cmd.Flags().Lookup("interval"))

	viper.SetEnvPrefix("DRIFT")
	viper.AutomaticEnv()

	return nil
}

func configFromViper() (*config.Config, error) {
	cfg := &config.Config{
		Path:             viper.ConfigFileUsed(),
		DataDir:          viper.GetString("data_dir"),
		RemoteRoot:       viper.GetString("remote_root"),
		ConflictStrategy: viper.GetString("conflict_strategy"),
		SyncAttachments:  viper.GetBool("sync_attachments"),
		MaxFileSize:      viper.GetInt64("max_file_size"),
		Excludes:         viper.GetStringSlice("excludes"),
		SyncInterval:     viper.GetDuration("sync_interval"),
		S3: config.S3Config{
			Bucket:        viper.GetString("s3.bucket"),
			Region:        viper.GetString("s3.region"),
			Endpoint:      viper.GetString("s3.endpoint"),
			AccessKey:     viper.GetString("s3.access_key"),
			SecretKey:     viper.GetString("s3.secret_key"),
			UseAccelerate: viper.GetBool("s3.use_accelerate"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEngine wires the workspace, stores, and ledger into a ready engine.
// cleanup releases the workspace lock and closes the ledger.
func buildEngine(ctx context.Context, cfg *config.Config) (*workspace.Workspace, *syncer.Engine, func(), error) {
	ws, err := workspace.New(cfg.DataDir)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := ws.Setup(); err != nil {
		return nil, nil, nil, err
	}
	if err := ws.Lock(); err != nil {
		return nil, nil, nil, err
	}

	ledgerStore, err := syncer.NewSQLiteLedgerStore(ws.LedgerPath)
	if err != nil {
		ws.Unlock()
		return nil, nil, nil, err
	}

	remote, err := store.NewS3RemoteFromConfig(ctx, cfg.S3, cfg.RemoteRoot)
	if err != nil {
		ledgerStore.Close()
		ws.Unlock()
		return nil, nil, nil, err
	}

	engine := syncer.New(
		store.NewLocal(ws.Root),
		remote,
		ledgerStore,
		syncer.Options{
			ClientType:       "drift-cli " + version.Version,
			ConflictStrategy: syncer.Strategy(cfg.ConflictStrategy),
			MaxFileSize:      cfg.MaxFileSize,
			SyncAttachments:  cfg.SyncAttachments,
			Excludes:         cfg.Excludes,
			Reporter:         syncer.SlogReporter,
		},
	)

	cleanup := func() {
		if err := ledgerStore.Close(); err != nil {
			slog.Warn("close ledger", "error", err)
		}
		if err := ws.Unlock(); err != nil {
			slog.Warn("unlock workspace", "error", err)
		}
	}
	return ws, engine, cleanup, nil
}

func showHeader() {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		color.New(color.FgHiCyan, color.Bold).Println(version.AppName)
		fmt.Println(version.Short())
	}
}

// multiHandler fans one slog record out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
