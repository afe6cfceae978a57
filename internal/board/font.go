package board

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var fontMu sync.Mutex
var fontCache = map[float64]font.Face{}
var parsedFont *opentype.Font

// fontFace returns a Go Regular face at the given point size, cached per
// size since text events reuse a handful of sizes.
func fontFace(size float64) (font.Face, error) {
	fontMu.Lock()
	defer fontMu.Unlock()

	if face, ok := fontCache[size]; ok {
		return face, nil
	}
	if parsedFont == nil {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("parsing embedded font: %w", err)
		}
		parsedFont = f
	}
	face, err := opentype.NewFace(parsedFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("building %gpt face: %w", size, err)
	}
	fontCache[size] = face
	return face, nil
}
