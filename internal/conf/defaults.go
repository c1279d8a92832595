// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Capacity defaults match the emulated hardware limits: eight concurrent
// audio clients, each with a 64 frame dispatch budget.
const (
	DefaultMaxClients      = 8
	DefaultMaxQueuedFrames = 64
	DefaultIdleSleep       = 500 * time.Millisecond
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "apu-go")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "apu.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("apu.maxclients", DefaultMaxClients)
	viper.SetDefault("apu.maxqueuedframes", DefaultMaxQueuedFrames)
	viper.SetDefault("apu.idlesleep", DefaultIdleSleep)
	viper.SetDefault("apu.driver", "null")
	viper.SetDefault("apu.outputpath", "capture/")
}
