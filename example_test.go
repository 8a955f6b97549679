package stardrive_test

import (
	"context"
	"fmt"
	"time"

	stardrive "github.com/SWORDIntel/STARDRIVE"
	"github.com/SWORDIntel/STARDRIVE/internal/adapters/sim"
	"github.com/SWORDIntel/STARDRIVE/plugins/edidwatcher"
)

// ExampleNew demonstrates how to embed stardrive in your application.
func ExampleNew() {
	// Create configuration
	cfg := stardrive.DefaultConfig()
	cfg.EDIDPath = "" // advertise the built-in 1080p EDID block

	// The transport and backend are your host's USB and virtual-display
	// layers; the sim adapter is an in-memory pair for development.
	s, err := stardrive.New(cfg, sim.NewTransport(), sim.NewBackend())
	if err != nil {
		fmt.Printf("failed to create stardrive: %v\n", err)
		return
	}

	// Run blocks until the context is canceled; drive it from a
	// goroutine or wire the context to signal handling.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = s.Run(ctx)

	fmt.Printf("stopped cleanly: %v\n", err == nil)

	// Output: stopped cleanly: true
}

// Example_withEDIDWatcher demonstrates enabling EDID hot-reload.
func Example_withEDIDWatcher() {
	cfg := stardrive.DefaultConfig()
	cfg.EDIDPath = "/etc/stardrive/edid.bin"

	_, err := stardrive.New(cfg, sim.NewTransport(), sim.NewBackend(),
		edidwatcher.WithDefaultEDIDWatcher())
	if err != nil {
		fmt.Printf("failed to create stardrive: %v\n", err)
		return
	}
	fmt.Println("edid watcher registered")
}
