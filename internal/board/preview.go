package board

import "github.com/pizarra/whiteboard/internal/canvas"

// BeginPreview captures the surface at gesture start. The raster has no
// native undo; this snapshot is the undo for everything drawn as preview.
func (r *Raster) BeginPreview() {
	r.snapshot = cloneRGBA(r.Image())
}

// PreviewShape restores the gesture-start pixels and draws the candidate
// shape in preview style. Called on every pointer move, so a stale candidate
// is never baked into the surface.
func (r *Raster) PreviewShape(ev canvas.Event) {
	r.restoreSnapshot()
	r.dc.Push()
	r.drawShape(ev, true)
	r.dc.Pop()
}

// EndPreview restores the snapshot once more and, when the gesture produced
// a final shape, draws it for real. Passing nil abandons the gesture.
func (r *Raster) EndPreview(final *canvas.Event) {
	r.restoreSnapshot()
	if final != nil {
		r.dc.Push()
		r.drawShape(*final, false)
		r.dc.Pop()
	}
	r.snapshot = nil
}

// PreviewActive reports whether a gesture snapshot is being held.
func (r *Raster) PreviewActive() bool {
	return r.snapshot != nil
}

func (r *Raster) restoreSnapshot() {
	if r.snapshot == nil {
		return
	}
	copy(r.Image().Pix, r.snapshot.Pix)
}
