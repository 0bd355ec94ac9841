package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"keytap/config"
	"keytap/keyboard"
	"keytap/systray"
)

func main() {
	configFlag := flag.String("config", "", "path to the configuration file")
	listFlag := flag.Bool("list", false, "list attached keyboards and exit")
	flag.Parse()

	// Setup logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *listFlag {
		listKeyboards()
		return
	}

	// Load configuration
	path := *configFlag
	if path == "" {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			slog.Error("Failed to locate config", "error", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded", "path", path)

	// Create agent
	agent, err := NewAgent(cfg)
	if err != nil {
		slog.Error("Failed to create agent", "error", err)
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	webAddr := ""
	if cfg.Web.Enabled {
		webAddr = cfg.Web.Listen
	}
	tray := systray.NewManager(webAddr, nil, systray.Callbacks{
		ToggleCapture:  agent.ToggleCapture,
		SessionPresses: agent.SessionPresses,
	})

	// The agent runs alongside the tray; whichever stops first takes the
	// other down with it.
	agentDone := make(chan error, 1)
	go func() {
		agentDone <- agent.Run(ctx)
		tray.Stop()
	}()

	go func() {
		select {
		case <-tray.WaitForQuit():
			cancel()
		case <-ctx.Done():
		}
	}()

	// The tray owns the main goroutine until quit
	tray.Run()

	if err := <-agentDone; err != nil {
		slog.Error("Agent error", "error", err)
		os.Exit(1)
	}

	slog.Info("keytap stopped")
}

// listKeyboards prints the attached keyboards for the -list flag
func listKeyboards() {
	keyboards, err := keyboard.ListKeyboards()
	if err != nil {
		slog.Error("Failed to list keyboards", "error", err)
		os.Exit(1)
	}
	if len(keyboards) == 0 {
		fmt.Println("no keyboards found")
		return
	}

	ids := make([]keyboard.DeviceID, 0, len(keyboards))
	for id := range keyboards {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		fmt.Printf("%4d  %s\n", id, keyboards[id])
	}
}
