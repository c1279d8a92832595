package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/emucore/apu-go/cmd"
	"github.com/emucore/apu-go/internal/conf"
	"github.com/emucore/apu-go/internal/logging"
)

func main() {
	logging.Init()

	settings := conf.Setting()
	if settings == nil {
		logging.Fatal("settings can't be nil")
	}

	if settings.Main.Log.Enabled {
		level := slog.LevelInfo
		if settings.Debug {
			level = slog.LevelDebug
		}
		closeLog, err := logging.InitFileOutput(settings.Main.Log.Path, level, logging.FileLoggerOptions{
			MaxSizeMB:  settings.Main.Log.MaxSizeMB,
			MaxBackups: settings.Main.Log.MaxBackups,
			MaxAgeDays: settings.Main.Log.MaxAgeDays,
		})
		if err != nil {
			logging.Fatal("failed to open log file", "path", settings.Main.Log.Path, "error", err)
		}
		defer func() { _ = closeLog() }()
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command execution error: %v\n", err)
		os.Exit(1)
	}
}
