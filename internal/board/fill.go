package board

import (
	"image/color"
	"strconv"
)

// FloodFill recolors the 4-connected region around the seed point. The match
// test always runs against the color found at the seed before any pixel was
// written, never the progressively filled color, and a visited set prevents
// reprocessing — so membership is independent of traversal order and the
// result is the same whether the frontier is a stack or a queue.
func (r *Raster) FloodFill(x, y int, fillHex string) {
	r.floodFill(x, y, fillHex, false)
}

func (r *Raster) floodFill(x, y int, fillHex string, fifo bool) {
	img := r.Image()
	w, h := r.width, r.height
	if x < 0 || x >= w || y < 0 || y >= h {
		return
	}

	target := img.RGBAAt(x, y)
	fill := parseHex(fillHex)
	if fill == target {
		return
	}

	visited := make([]bool, w*h)
	frontier := make([][2]int, 0, 64)
	frontier = append(frontier, [2]int{x, y})

	for len(frontier) > 0 {
		var cx, cy int
		if fifo {
			cx, cy = frontier[0][0], frontier[0][1]
			frontier = frontier[1:]
		} else {
			last := len(frontier) - 1
			cx, cy = frontier[last][0], frontier[last][1]
			frontier = frontier[:last]
		}

		if cx < 0 || cx >= w || cy < 0 || cy >= h {
			continue
		}
		idx := cy*w + cx
		if visited[idx] {
			continue
		}
		if img.RGBAAt(cx, cy) != target {
			continue
		}

		img.SetRGBA(cx, cy, fill)
		visited[idx] = true

		frontier = append(frontier,
			[2]int{cx - 1, cy},
			[2]int{cx + 1, cy},
			[2]int{cx, cy - 1},
			[2]int{cx, cy + 1},
		)
	}
}

// parseHex decodes a #rrggbb color. Anything unparsable falls back to the
// default drawing color, mirroring the server-side payload coercion.
func parseHex(s string) color.RGBA {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{A: 0xff}
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}
}

// hexComponents returns the color channels as floats in [0, 1].
func hexComponents(s string) (float64, float64, float64) {
	c := parseHex(s)
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255
}
