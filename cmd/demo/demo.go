// Package demo implements a self-contained exercise of the audio system:
// it registers synthetic guest clients whose callbacks render and submit
// sine wave frames, then runs the dispatch worker against the configured
// driver backend for a while.
package demo

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emucore/apu-go/internal/apu"
	"github.com/emucore/apu-go/internal/apu/driver"
	"github.com/emucore/apu-go/internal/conf"
	"github.com/emucore/apu-go/internal/guest"
	"github.com/emucore/apu-go/internal/logging"
	"github.com/emucore/apu-go/internal/observability/metrics"
)

// Command creates the demo command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run synthetic audio clients against a driver backend",
		Long:  "Register synthetic guest clients that render sine wave frames and pump them through the dispatch worker.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.APU.Driver, "driver", viper.GetString("apu.driver"), "Driver backend (null, buffered, wav, malgo)")
	cmd.Flags().StringVar(&settings.APU.OutputPath, "outputpath", viper.GetString("apu.outputpath"), "Capture directory for the wav driver")
	cmd.Flags().Int("clients", 2, "Number of synthetic clients to register")
	cmd.Flags().Duration("runfor", 3*time.Second, "How long to run before shutting down")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

func runDemo(settings *conf.Settings) error {
	logger := logging.ForService("demo")

	mem := guest.NewHeap(16 << 20)
	proc := guest.NewFuncProcessor()

	factory, err := newFactory(settings, mem)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	apuMetrics, err := metrics.NewAPUMetrics(registry)
	if err != nil {
		return fmt.Errorf("error creating metrics: %w", err)
	}

	sys := apu.New(apu.Config{
		MaxClients:      settings.APU.MaxClients,
		MaxQueuedFrames: settings.APU.MaxQueuedFrames,
		IdleSleep:       settings.APU.IdleSleep,
	}, mem, proc, factory, apu.WithMetrics(apuMetrics))

	clients := viper.GetInt("clients")
	if clients < 1 {
		clients = 1
	}
	slots := make([]int, 0, clients)
	for i := 0; i < clients; i++ {
		// one voice per client, a fifth apart
		freq := 220.0 * math.Pow(1.5, float64(i))
		idx, err := registerSineClient(sys, mem, proc, freq)
		if err != nil {
			return fmt.Errorf("error registering client %d: %w", i, err)
		}
		slots = append(slots, idx)
	}

	if err := sys.Setup(); err != nil {
		return fmt.Errorf("error starting audio system: %w", err)
	}

	logger.Info("demo running",
		"clients", clients,
		"driver", settings.APU.Driver)

	runFor := viper.GetDuration("runfor")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-time.After(runFor):
	case s := <-sig:
		logger.Info("interrupted", "signal", s.String())
	}

	for _, idx := range slots {
		if err := sys.UnregisterClient(idx); err != nil {
			logger.Error("unregister failed", "slot", idx, "error", err)
		}
	}

	return sys.Shutdown()
}

// registerSineClient registers one client whose callback renders a sine
// frame into a fixed guest buffer and submits it, the way firmware would
// refill its output buffer on every pump.
func registerSineClient(sys *apu.System, mem *guest.Heap, proc *guest.FuncProcessor, freq float64) (int, error) {
	frame, err := mem.SystemHeapAlloc(driver.FrameBytes)
	if err != nil {
		return 0, err
	}

	// slot is known only after registration; the worker starts in Setup,
	// after all clients are in place, so the callback never races this.
	var slot int
	var phase float64
	step := 2 * math.Pi * freq / 48000

	cb := proc.Register(func(_ context.Context, _ ...uint64) uint64 {
		for i := 0; i < driver.FrameSamples; i++ {
			v := float32(0.25 * math.Sin(phase))
			phase += step
			bits := math.Float32bits(v)
			for ch := 0; ch < driver.FrameChannels; ch++ {
				off := uint32((i*driver.FrameChannels + ch) * 4)
				if err := mem.WriteUint32(frame+guest.Address(off), bits); err != nil {
					return 1
				}
			}
		}
		if err := sys.SubmitFrame(slot, frame); err != nil {
			return 1
		}
		return 0
	})

	idx, err := sys.RegisterClient(cb, uint32(frame))
	if err != nil {
		return 0, err
	}
	slot = idx
	return idx, nil
}

func newFactory(settings *conf.Settings, mem *guest.Heap) (driver.Factory, error) {
	switch settings.APU.Driver {
	case "", "null":
		return driver.NewNullFactory(), nil
	case "buffered":
		return driver.NewBufferedFactory(mem, driver.BufferedConfig{}), nil
	case "wav":
		return driver.NewWavFactory(mem, settings.APU.OutputPath), nil
	case "malgo":
		return driver.NewMalgoFactory(mem, driver.MalgoConfig{}), nil
	default:
		return nil, fmt.Errorf("unknown driver backend: %q", settings.APU.Driver)
	}
}
