// Package client contains the reconciliation engine and the WebSocket
// transport that keep a local raster consistent with the shared board.
package client

import (
	"math"

	"github.com/pizarra/whiteboard/internal/board"
	"github.com/pizarra/whiteboard/internal/canvas"
)

// minShapeDrag is how far a shape gesture must travel before it counts.
// Anything shorter is treated as an accidental click and abandoned.
const minShapeDrag = 5.0

// Engine applies remote and replayed events onto the raster while hosting
// the uncommitted local gesture. It is single-owner: whoever created it is
// the only goroutine allowed to call it, so the raster never sees
// concurrent mutation.
type Engine struct {
	raster  *board.Raster
	history []canvas.Event
	emit    func(canvas.Event) // transmits a locally authored event

	stroking   bool
	lastX      float64
	lastY      float64
	strokeSpec strokeSpec

	gesture *shapeGesture
}

type strokeSpec struct {
	color  string
	size   float64
	eraser bool
}

type shapeGesture struct {
	shape  string
	startX float64
	startY float64
	color  string
	size   float64
	fill   bool
}

// NewEngine wires the engine to a raster and an emit function. The emit
// function must not block; the transport owns buffering.
func NewEngine(raster *board.Raster, emit func(canvas.Event)) *Engine {
	if emit == nil {
		emit = func(canvas.Event) {}
	}
	return &Engine{raster: raster, emit: emit}
}

func (e *Engine) Raster() *board.Raster { return e.raster }

// History returns the locally buffered confirmed events.
func (e *Engine) History() []canvas.Event {
	out := make([]canvas.Event, len(e.history))
	copy(out, e.history)
	return out
}

// --- local optimistic path ---

// BeginStroke starts a freehand stroke at the given point.
func (e *Engine) BeginStroke(x, y float64, color string, size float64, eraser bool) {
	e.stroking = true
	e.lastX, e.lastY = x, y
	e.strokeSpec = strokeSpec{color: color, size: size, eraser: eraser}
}

// StrokeTo draws the segment from the previous point immediately — the
// local surface never waits for a server round-trip — and transmits the
// same segment for the rest of the board.
func (e *Engine) StrokeTo(x, y float64) {
	if !e.stroking {
		return
	}
	ev := canvas.Event{
		Kind:   canvas.KindStroke,
		X1:     e.lastX,
		Y1:     e.lastY,
		X2:     x,
		Y2:     y,
		Color:  e.strokeSpec.color,
		Size:   e.strokeSpec.size,
		Eraser: e.strokeSpec.eraser,
	}
	ev.Normalize()
	e.raster.Apply(ev)
	e.record(ev)
	e.emit(ev)
	e.lastX, e.lastY = x, y
}

func (e *Engine) EndStroke() {
	e.stroking = false
}

// --- preview path ---

// BeginShape snapshots the surface and opens a shape gesture.
func (e *Engine) BeginShape(shape string, x, y float64, color string, size float64, fill bool) {
	e.gesture = &shapeGesture{shape: shape, startX: x, startY: y, color: color, size: size, fill: fill}
	e.raster.BeginPreview()
}

// DragShape redraws the candidate shape from the gesture-start snapshot.
func (e *Engine) DragShape(x, y float64) {
	if e.gesture == nil {
		return
	}
	e.raster.PreviewShape(e.gestureEvent(x, y))
}

// EndShape finalizes the gesture: the snapshot is restored, the real shape
// is drawn once, and a single event is transmitted. Gestures shorter than
// the drag threshold are abandoned without drawing or transmitting.
func (e *Engine) EndShape(x, y float64) {
	g := e.gesture
	if g == nil {
		return
	}
	if math.Abs(x-g.startX) <= minShapeDrag && math.Abs(y-g.startY) <= minShapeDrag {
		e.gesture = nil
		e.raster.EndPreview(nil)
		return
	}

	ev := e.gestureEvent(x, y)
	e.gesture = nil
	ev.Normalize()
	e.raster.EndPreview(&ev)
	e.record(ev)
	e.emit(ev)
}

func (e *Engine) gestureEvent(x, y float64) canvas.Event {
	g := e.gesture
	return canvas.Event{
		Kind:  canvas.KindShape,
		Shape: g.shape,
		X1:    g.startX,
		Y1:    g.startY,
		X2:    x,
		Y2:    y,
		Color: g.color,
		Size:  g.size,
		Fill:  g.fill,
	}
}

// Fill flood-fills locally and transmits the fill event.
func (e *Engine) Fill(x, y int, color string) {
	ev := canvas.Event{Kind: canvas.KindFill, X: x, Y: y, Color: color}
	ev.Normalize()
	e.raster.Apply(ev)
	e.record(ev)
	e.emit(ev)
}

// Text bakes a text run at the anchor point and transmits it.
func (e *Engine) Text(x, y int, text, color string, size float64) {
	if text == "" {
		return
	}
	ev := canvas.Event{Kind: canvas.KindText, X: x, Y: y, Text: text, Color: color, Size: size}
	ev.Normalize()
	e.raster.Apply(ev)
	e.record(ev)
	e.emit(ev)
}

// --- remote apply path ---

// HandleRemote applies one broadcast event in arrival order. The engine
// never reorders or buffers across events: the transport's delivery order
// is the server's append order, and that order is the truth.
func (e *Engine) HandleRemote(ev canvas.Event) {
	e.raster.Apply(ev)
	e.record(ev)
}

// HandleHistory replaces local state with the server's replay snapshot.
func (e *Engine) HandleHistory(events []canvas.Event) {
	e.raster.Replay(events)
	e.history = append(e.history[:0], events...)
}

// record appends to the local buffer; a clear discards everything that came
// before it, exactly as the server log truncates.
func (e *Engine) record(ev canvas.Event) {
	if ev.Kind == canvas.KindClear {
		e.history = append(e.history[:0], ev)
		return
	}
	e.history = append(e.history, ev)
}
