// Package mock feeds synthetic drawing traffic through the live publish
// path, for demos and for eyeballing clients without real participants.
package mock

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/pizarra/whiteboard/internal/canvas"
	"github.com/pizarra/whiteboard/internal/ws"
)

var palette = []string{"#e74c3c", "#3498db", "#2ecc71", "#f39c12", "#9b59b6", "#000000"}

// scribbler is one fake participant tracing a wandering path.
type scribbler struct {
	session string
	x, y    float64
	heading float64
	color   string
	size    float64
}

type Generator struct {
	broadcaster *ws.Broadcaster
	width       float64
	height      float64
	scribblers  []*scribbler
}

func NewGenerator(broadcaster *ws.Broadcaster, width, height int) *Generator {
	g := &Generator{
		broadcaster: broadcaster,
		width:       float64(width),
		height:      float64(height),
	}
	for i := 0; i < 3; i++ {
		g.scribblers = append(g.scribblers, &scribbler{
			session: fmt.Sprintf("mock-scribbler-%d", i),
			x:       rand.Float64() * g.width,
			y:       rand.Float64() * g.height,
			heading: rand.Float64() * 2 * math.Pi,
			color:   palette[i%len(palette)],
			size:    float64(3 + i*2),
		})
	}
	return g
}

func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			for _, s := range g.scribblers {
				g.broadcaster.Publish(s.step(g.width, g.height), "")
			}
			// An occasional shape or fill keeps the replay interesting.
			if tick%50 == 0 {
				g.broadcaster.Publish(g.randomShape(), "")
			}
			if tick%120 == 0 {
				g.broadcaster.Publish(canvas.Event{
					Kind:    canvas.KindFill,
					Session: "mock-filler",
					X:       rand.Intn(int(g.width)),
					Y:       rand.Intn(int(g.height)),
					Color:   palette[rand.Intn(len(palette))],
				}, "")
			}
		}
	}
}

// step advances the scribbler along its path and returns the segment drawn.
func (s *scribbler) step(width, height float64) canvas.Event {
	s.heading += (rand.Float64() - 0.5) * 0.8
	nx := s.x + 12*math.Cos(s.heading)
	ny := s.y + 12*math.Sin(s.heading)
	if nx < 0 || nx > width {
		s.heading = math.Pi - s.heading
		nx = math.Max(0, math.Min(nx, width))
	}
	if ny < 0 || ny > height {
		s.heading = -s.heading
		ny = math.Max(0, math.Min(ny, height))
	}

	ev := canvas.Event{
		Kind:    canvas.KindStroke,
		Session: s.session,
		X1:      s.x,
		Y1:      s.y,
		X2:      nx,
		Y2:      ny,
		Color:   s.color,
		Size:    s.size,
	}
	s.x, s.y = nx, ny
	return ev
}

func (g *Generator) randomShape() canvas.Event {
	shapes := []string{canvas.ShapeRectangle, canvas.ShapeCircle, canvas.ShapeLine, canvas.ShapeArrow}
	x := rand.Float64() * g.width
	y := rand.Float64() * g.height
	return canvas.Event{
		Kind:    canvas.KindShape,
		Session: "mock-shaper",
		Shape:   shapes[rand.Intn(len(shapes))],
		X1:      x,
		Y1:      y,
		X2:      x + 40 + rand.Float64()*120,
		Y2:      y + 40 + rand.Float64()*80,
		Color:   palette[rand.Intn(len(palette))],
		Size:    3,
		Fill:    rand.Intn(3) == 0,
	}
}
