// Package board renders drawing events onto a local raster. It is the
// client-side half of the sync protocol: replaying a history snapshot in
// order, applying live broadcast events, and hosting the in-progress local
// gesture (stroke, shape preview, flood fill) without corrupting either.
package board

import (
	"image"
	"io"
	"log"
	"math"

	"github.com/fogleman/gg"
	"github.com/pizarra/whiteboard/internal/canvas"
)

// BackgroundColor is what the eraser paints and what a clear restores.
const BackgroundColor = "#ffffff"

// Raster is a single-owner drawing surface. It is not safe for concurrent
// use; exactly one goroutine (the reconciliation engine) drives it.
type Raster struct {
	dc       *gg.Context
	width    int
	height   int
	snapshot *image.RGBA // gesture-start pixels while a preview is active
}

func NewRaster(width, height int) *Raster {
	dc := gg.NewContext(width, height)
	dc.SetHexColor(BackgroundColor)
	dc.Clear()
	return &Raster{dc: dc, width: width, height: height}
}

func (r *Raster) Width() int  { return r.width }
func (r *Raster) Height() int { return r.height }

// Apply draws one replayed or broadcast event. Style state is pushed and
// popped around every event so a remote stroke's color, width or font can
// never leak into a later local operation.
func (r *Raster) Apply(ev canvas.Event) {
	r.dc.Push()
	defer r.dc.Pop()

	switch ev.Kind {
	case canvas.KindStroke:
		r.strokeSegment(ev)
	case canvas.KindShape:
		r.drawShape(ev, false)
	case canvas.KindText:
		r.drawText(ev)
	case canvas.KindFill:
		r.FloodFill(ev.X, ev.Y, ev.Color)
	case canvas.KindClear:
		r.Clear()
	}
}

// Replay rebuilds the surface from an event sequence: wipe, then a left-fold
// of Apply in exactly the given order.
func (r *Raster) Replay(events []canvas.Event) {
	r.Clear()
	for _, ev := range events {
		r.Apply(ev)
	}
}

// Clear wipes the surface back to the background color.
func (r *Raster) Clear() {
	r.dc.Push()
	r.dc.SetHexColor(BackgroundColor)
	r.dc.Clear()
	r.dc.Pop()
}

func (r *Raster) strokeSegment(ev canvas.Event) {
	color := ev.Color
	width := ev.Size
	if ev.Eraser {
		color = BackgroundColor
		width = ev.Size * 2
	}
	r.dc.SetHexColor(color)
	r.dc.SetLineWidth(width)
	r.dc.SetLineCap(gg.LineCapRound)
	r.dc.SetLineJoin(gg.LineJoinRound)
	r.dc.DrawLine(ev.X1, ev.Y1, ev.X2, ev.Y2)
	r.dc.Stroke()
}

func (r *Raster) drawShape(ev canvas.Event, preview bool) {
	cr, cg, cb := hexComponents(ev.Color)
	strokeAlpha, fillAlpha := 1.0, 1.0
	if preview {
		// Previews are visibly provisional: translucent and dashed.
		strokeAlpha, fillAlpha = 0.5, 0.2
		r.dc.SetDash(5, 5)
	} else {
		r.dc.SetDash()
	}
	r.dc.SetRGBA(cr, cg, cb, strokeAlpha)
	r.dc.SetLineWidth(ev.Size)
	r.dc.SetLineCap(gg.LineCapRound)
	r.dc.SetLineJoin(gg.LineJoinRound)

	switch ev.Shape {
	case canvas.ShapeRectangle:
		r.dc.DrawRectangle(ev.X1, ev.Y1, ev.X2-ev.X1, ev.Y2-ev.Y1)
		if ev.Fill {
			r.dc.SetRGBA(cr, cg, cb, fillAlpha)
			r.dc.Fill()
		} else {
			r.dc.Stroke()
		}
	case canvas.ShapeCircle:
		radius := math.Hypot(ev.X2-ev.X1, ev.Y2-ev.Y1)
		r.dc.DrawCircle(ev.X1, ev.Y1, radius)
		if ev.Fill {
			r.dc.SetRGBA(cr, cg, cb, fillAlpha)
			r.dc.Fill()
		} else {
			r.dc.Stroke()
		}
	case canvas.ShapeLine:
		r.dc.DrawLine(ev.X1, ev.Y1, ev.X2, ev.Y2)
		r.dc.Stroke()
	case canvas.ShapeArrow:
		r.dc.DrawLine(ev.X1, ev.Y1, ev.X2, ev.Y2)
		r.dc.Stroke()
		headLength := ev.Size * 3
		angle := math.Atan2(ev.Y2-ev.Y1, ev.X2-ev.X1)
		for _, barb := range []float64{angle - math.Pi/6, angle + math.Pi/6} {
			r.dc.DrawLine(ev.X2, ev.Y2, ev.X2-headLength*math.Cos(barb), ev.Y2-headLength*math.Sin(barb))
			r.dc.Stroke()
		}
	}
}

func (r *Raster) drawText(ev canvas.Event) {
	if ev.Text == "" {
		return
	}
	size := math.Max(12, ev.Size*2)
	face, err := fontFace(size)
	if err != nil {
		log.Printf("board: no font face for size %.0f: %v", size, err)
		return
	}
	r.dc.SetFontFace(face)
	r.dc.SetHexColor(ev.Color)
	// Anchor the top-left of the string at the event point.
	r.dc.DrawStringAnchored(ev.Text, float64(ev.X), float64(ev.Y), 0, 1)
}

// Image exposes the backing pixels. The caller must not retain it across
// further drawing.
func (r *Raster) Image() *image.RGBA {
	return r.dc.Image().(*image.RGBA)
}

// EncodePNG writes the current surface as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	return r.dc.EncodePNG(w)
}
