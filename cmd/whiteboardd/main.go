package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pizarra/whiteboard/internal/canvas"
	"github.com/pizarra/whiteboard/internal/config"
	"github.com/pizarra/whiteboard/internal/mock"
	"github.com/pizarra/whiteboard/internal/registry"
	"github.com/pizarra/whiteboard/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Generate synthetic drawing traffic")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	history := canvas.NewLog(cfg.Board.HistoryLimit)
	reg := registry.New(cfg.Board.InactivityTimeout, cfg.Board.DetachGrace)
	broadcaster := ws.NewBroadcaster(history, cfg.Board.SendBuffer)
	server := ws.NewServer(cfg, reg, broadcaster)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Run(ctx)

	if *mockMode {
		log.Println("Starting mock drawing traffic")
		gen := mock.NewGenerator(broadcaster, cfg.Canvas.Width, cfg.Canvas.Height)
		gen.Start(ctx)
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
