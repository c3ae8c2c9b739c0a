package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pathwatch/internal/logging"
	"pathwatch/internal/version"
	"pathwatch/internal/watcher"
	"pathwatch/pkg/utils"
)

var (
	home, _          = os.UserHomeDir()
	defaultConfigDir = filepath.Join(home, ".pathwatch")
	configFileName   = "config"
)

var cyan = color.New(color.FgHiCyan, color.Bold).SprintFunc()

var rootCmd = &cobra.Command{
	Use:     "pathwatch [path]",
	Short:   "PathWatch - filesystem change monitor",
	Version: version.Detailed(),
	Args:    cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd, args)
	},
	RunE: runWatch,
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().BoolP("file", "f", false, "watch a single file instead of a directory tree")
	rootCmd.Flags().Bool("heuristic", false, "watch the directory root only, skipping subdirectory pre-registration")
	rootCmd.Flags().StringP("log-file", "l", "", "append logs to this file in addition to stdout")
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default "+filepath.Join(defaultConfigDir, configFileName+".json")+")")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(defaultConfigDir)
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("file_mode", cmd.Flags().Lookup("file"))
	viper.BindPFlag("heuristic", cmd.Flags().Lookup("heuristic"))
	viper.BindPFlag("log_file", cmd.Flags().Lookup("log-file"))

	viper.SetEnvPrefix("PATHWATCH")
	viper.AutomaticEnv()

	// A positional path wins over the config file.
	if len(args) > 0 {
		viper.Set("watch_path", args[0])
	}

	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	watchPath := viper.GetString("watch_path")
	if watchPath == "" {
		return errors.New("nothing to watch: pass a path argument or set watch_path in the config")
	}
	resolved, err := utils.ResolvePath(watchPath)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.Setup(viper.GetString("log_file"), slog.LevelDebug)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	cmd.SilenceUsage = true
	fmt.Fprintln(cmd.OutOrStdout(), cyan(version.AppName), version.Short())

	w, err := newWatcher(resolved)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	w.AttachLogger(logger)

	slog.Info("watching", "path", resolved, "watches", w.Watches())

	// Watch reports a single event per call; loop for continuous
	// monitoring until the context is cancelled.
	var handled atomic.Uint64
	watchErr := make(chan error, 1)
	go func() {
		for {
			if _, err := w.Watch(); err != nil {
				watchErr <- err
				return
			}
			handled.Add(1)
		}
	}()

	select {
	case <-cmd.Context().Done():
		slog.Info("shutting down", "events_handled", handled.Load())
		return nil
	case err := <-watchErr:
		return fmt.Errorf("watch: %w", err)
	}
}

func newWatcher(path string) (*watcher.Watcher, error) {
	if viper.GetBool("file_mode") {
		if !utils.FileExists(path) {
			return nil, fmt.Errorf("not a file: %s", path)
		}
		return watcher.NewFileWatcher(path)
	}

	if !utils.DirExists(path) {
		return nil, fmt.Errorf("not a directory: %s", path)
	}
	traversal := watcher.Recursive
	if viper.GetBool("heuristic") {
		traversal = watcher.Heuristic
	}
	return watcher.NewDirWatcher(path, traversal)
}
