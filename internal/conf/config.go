// Package conf handles the loading and access of apu-go settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig defines the configuration for the application log file.
type LogConfig struct {
	Enabled    bool   // true to enable file logging
	Path       string // path to log file
	MaxSizeMB  int    // log file size before rotation
	MaxBackups int    // rotated files to keep
	MaxAgeDays int    // days to keep rotated files
}

// APUSettings holds the fixed capacity constants of the audio system.
// These are read once at construction time and not runtime-reconfigurable.
type APUSettings struct {
	MaxClients      int           // maximum concurrent audio clients
	MaxQueuedFrames int           // per-client queued-frame bound (semaphore max)
	IdleSleep       time.Duration // worker back-off when a wakeup pumped nothing
	Driver          string        // default driver backend: null, buffered, wav, malgo
	OutputPath      string        // capture path for the wav driver
}

// MainSettings contains main application settings.
type MainSettings struct {
	Name string // application name
	Log  LogConfig
}

// Settings is the root of the apu-go configuration.
type Settings struct {
	Debug bool
	Main  MainSettings
	APU   APUSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Setting returns the global settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		settingsInstance = &Settings{}
		if err := Load(settingsInstance); err != nil {
			setDefaultConfig()
			_ = viper.Unmarshal(settingsInstance)
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Load reads the configuration into s, falling back to defaults for any
// value not present in the config file.
func Load(s *Settings) error {
	setDefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(dir, "apu-go"))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// no config file is fine, defaults apply
	}

	if err := viper.Unmarshal(s); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	return nil
}

// SaveDefault writes the current settings as a yaml config file.
func SaveDefault(s *Settings, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
