package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	stardrive "github.com/SWORDIntel/STARDRIVE"
	"github.com/SWORDIntel/STARDRIVE/internal/adapters/sim"
	"github.com/SWORDIntel/STARDRIVE/internal/cliconfig"
	"github.com/SWORDIntel/STARDRIVE/plugins/edidwatcher"
)

const helpDescription = `
Drive DisplayLink USB docks from user space: one virtual display per
connected device, streamed over the dock's proprietary USB protocol.

Highlights:
  - Hot-plug aware: devices come and go, each with its own worker.
  - Run-length compressed damage updates, never full-frame unless needed.
  - EDID configurable per deployment; hot-reload with --watch-edid.
  - USB transport and virtual-display backend plug in via the library API;
    --sim runs an in-memory pair for end-to-end smoke testing.
`

var exampleUsage = strings.TrimSpace(`
  stardrive --sim --log-level debug
  stardrive --edid /etc/stardrive/dell-p2414h.bin --watch-edid
  stardrive --config $HOME/.stardrive/config.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var (
		cfgPath string
		vidStr  string
		pidStr  string
	)

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "stardrive",
		Short:   "User-space DisplayLink USB display driver",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.stardrive/config.toml),
			// then env, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if changed["vid"] {
				id, err := cliconfig.ParseUSBID(vidStr)
				if err != nil {
					return err
				}
				cfg.VendorID = id
			}
			if changed["pid"] {
				id, err := cliconfig.ParseUSBID(pidStr)
				if err != nil {
					return err
				}
				cfg.ProductID = id
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log = log.Level(cliconfig.ParseLevel(cfg.LogLevel))
			log.Info().
				Str("vid", fmt.Sprintf("0x%04X", cfg.VendorID)).
				Str("pid", fmt.Sprintf("0x%04X", cfg.ProductID)).
				Str("edid", cfg.EDIDPath).
				Dur("scan_interval", cfg.ScanInterval).
				Bool("sim", cfg.Sim).
				Msg("configuration")

			var (
				transport stardrive.Transport
				backend   stardrive.DisplayBackend
			)
			if cfg.Sim {
				transport = sim.NewTransport()
				backend = sim.NewBackend()
			} else {
				// The USB and virtual-display HALs are host-specific
				// and supplied through the library API; this binary
				// ships only the simulated pair.
				return fmt.Errorf("no usb transport available in this build; run with --sim or embed the library with a HAL")
			}

			if cfg.Once {
				devices, err := transport.Enumerate(cmd.Context(), cfg.VendorID, cfg.ProductID)
				if err != nil {
					return fmt.Errorf("enumerate: %w", err)
				}
				for _, d := range devices {
					log.Info().
						Str("device", d.Key()).
						Str("vid", fmt.Sprintf("0x%04X", d.VendorID)).
						Str("pid", fmt.Sprintf("0x%04X", d.ProductID)).
						Msg("device found")
				}
				log.Info().Int("count", len(devices)).Msg("single scan complete")
				return nil
			}

			opts := []stardrive.Option{stardrive.WithZerolog(log)}
			if cfg.WatchEDID {
				opts = append(opts, edidwatcher.WithDefaultEDIDWatcher())
			}

			s, err := stardrive.New(cfg, transport, backend, opts...)
			if err != nil {
				return fmt.Errorf("create stardrive: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Info().Msg("received signal, stopping...")
				cancel()
			}()

			return s.Run(ctx)
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.stardrive/config.toml)")
	root.Flags().StringVar(&vidStr, "vid", fmt.Sprintf("0x%04X", cfg.VendorID), "USB vendor id to match")
	root.Flags().StringVar(&pidStr, "pid", fmt.Sprintf("0x%04X", cfg.ProductID), "USB product id to match")
	root.Flags().StringVar(&cfg.EDIDPath, "edid", cfg.EDIDPath, "EDID file to advertise (default: built-in 1080p block)")
	root.Flags().DurationVar(&cfg.ScanInterval, "scan-interval", cfg.ScanInterval, "device enumeration polling interval")
	root.Flags().DurationVar(&cfg.ControlTimeout, "control-timeout", cfg.ControlTimeout, "USB control transfer timeout")
	root.Flags().DurationVar(&cfg.TransferTimeout, "transfer-timeout", cfg.TransferTimeout, "USB bulk transfer timeout")
	root.Flags().IntVar(&cfg.QueueDepth, "queue-depth", cfg.QueueDepth, "per-device event queue depth")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&cfg.Sim, "sim", false, "use the in-memory simulated transport and display backend")
	root.Flags().BoolVar(&cfg.Once, "once", false, "enumerate matching devices once and exit")
	root.Flags().BoolVar(&cfg.WatchEDID, "watch-edid", false, "reload the EDID file on change")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("exit")
		os.Exit(1)
	}
}
