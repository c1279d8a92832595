package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emucore/apu-go/cmd/demo"
	"github.com/emucore/apu-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "apu-go",
		Short: "apu-go CLI",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(demo.Command(settings))

	return rootCmd
}

// setupFlags defines global flags shared by all subcommands.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().IntVar(&settings.APU.MaxClients, "maxclients", viper.GetInt("apu.maxclients"), "Maximum concurrent audio clients")
	rootCmd.PersistentFlags().IntVar(&settings.APU.MaxQueuedFrames, "maxqueuedframes", viper.GetInt("apu.maxqueuedframes"), "Per-client queued frame bound")
	rootCmd.PersistentFlags().DurationVar(&settings.APU.IdleSleep, "idlesleep", viper.GetDuration("apu.idlesleep"), "Dispatch worker back-off after an empty wakeup")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
