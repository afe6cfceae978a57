// pizarra-snapshot joins a whiteboard server as a headless participant,
// replays the board history onto a local raster, optionally watches live
// events for a while, and writes the result to a PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/pizarra/whiteboard/internal/board"
	"github.com/pizarra/whiteboard/internal/canvas"
	"github.com/pizarra/whiteboard/internal/client"
	"github.com/pizarra/whiteboard/internal/ws"
)

func main() {
	url := flag.String("url", "ws://localhost:3030/ws", "Whiteboard server WebSocket URL")
	out := flag.String("out", "pizarra.png", "Output PNG path")
	watch := flag.Duration("watch", 0, "Keep applying live events for this long before saving")
	flag.Parse()

	var engine *client.Engine

	handlers := client.Handlers{
		Session: func(p ws.SessionPayload) {
			log.Printf("Session %s (exists=%v history=%v)", p.SessionID, p.Exists, p.HasHistory)
		},
		History: func(p ws.HistoryPayload) {
			if engine == nil {
				// A snapshot-only client sends nothing, so no emit hook.
				engine = client.NewEngine(board.NewRaster(p.Width, p.Height), nil)
			}
			engine.HandleHistory(p.Events)
			log.Printf("Replayed %d events onto %dx%d raster", len(p.Events), p.Width, p.Height)
		},
		Event: func(ev canvas.Event) {
			if engine != nil {
				engine.HandleRemote(ev)
			}
		},
		Creator: func() {
			log.Println("This session holds creator authority")
		},
	}

	c := client.New(*url, handlers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	runCtx := ctx
	if *watch > 0 {
		var watchCancel context.CancelFunc
		runCtx, watchCancel = context.WithTimeout(ctx, *watch)
		defer watchCancel()
	} else {
		// Give the server a moment to deliver the history snapshot.
		var watchCancel context.CancelFunc
		runCtx, watchCancel = context.WithTimeout(ctx, 3*time.Second)
		defer watchCancel()
	}

	if err := c.Run(runCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Printf("Connection ended: %v", err)
	}

	if engine == nil {
		log.Fatal("No history received; nothing to save")
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Creating %s: %v", *out, err)
	}
	defer f.Close()

	if err := engine.Raster().EncodePNG(f); err != nil {
		log.Fatalf("Encoding PNG: %v", err)
	}
	log.Printf("Saved board to %s", *out)
}
