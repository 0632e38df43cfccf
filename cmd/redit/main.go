package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	apppkg "github.com/kk-code-lab/redit/internal/app"
	"github.com/kk-code-lab/redit/internal/fs"
	"github.com/kk-code-lab/redit/internal/persist"
)

var (
	flagRoot       string
	flagMaxEntries int
	flagChunkSize  int
	flagStatePath  string
	flagLogFile    string
	flagLogLevel   string
	flagReadonly   bool
	flagHidden     bool
)

func main() {
	root := &cobra.Command{
		Use:   "redit [dir]",
		Short: "Browse directories and edit huge text files in bounded memory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}
	root.Flags().StringVar(&flagRoot, "root", "", "browse root (default: the dir argument or cwd)")
	root.Flags().IntVar(&flagMaxEntries, "max-entries", 512, "full-sort budget; larger listings page unsorted (0 = unlimited)")
	root.Flags().IntVar(&flagChunkSize, "chunk-size", fs.DefaultChunkSize, "content chunk size in bytes")
	root.Flags().StringVar(&flagStatePath, "state", "", "state database path (default: user config dir)")
	root.Flags().StringVar(&flagLogFile, "log-file", "", "write logs to this file (default: discard)")
	root.Flags().StringVar(&flagLogLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.Flags().BoolVar(&flagReadonly, "readonly", false, "disable editing and saving")
	root.Flags().BoolVar(&flagHidden, "hidden", false, "list hidden entries")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "redit: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	rootDir := flagRoot
	if rootDir == "" && len(args) > 0 {
		rootDir = args[0]
	}
	if rootDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		rootDir = cwd
	}
	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return err
	}

	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			_ = store.Close()
		}()
	}

	app, err := apppkg.NewApplication(apppkg.Config{
		Root:       rootDir,
		MaxEntries: flagMaxEntries,
		ChunkSize:  flagChunkSize,
		Readonly:   flagReadonly,
		ShowHidden: flagHidden,
		Store:      store,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	app.Run()
	return nil
}

func buildLogger() (*zap.Logger, error) {
	if flagLogFile == "" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(flagLogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", flagLogLevel, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{flagLogFile}
	cfg.ErrorOutputPaths = []string{flagLogFile}
	return cfg.Build()
}

// openStore opens the navigator state database. A failure here degrades
// to a session without persistence instead of refusing to start.
func openStore(logger *zap.Logger) (persist.Store, error) {
	path := flagStatePath
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			logger.Warn("no user config dir, state persistence disabled", zap.Error(err))
			return nil, nil
		}
		dir := filepath.Join(configDir, "redit")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("cannot create state dir, state persistence disabled", zap.Error(err))
			return nil, nil
		}
		path = filepath.Join(dir, "state.db")
	}
	store, err := persist.OpenBolt(path)
	if err != nil {
		logger.Warn("cannot open state db, state persistence disabled", zap.Error(err))
		return nil, nil
	}
	return store, nil
}
