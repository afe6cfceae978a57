package canvas

import (
	"encoding/json"
	"math"
	"regexp"
	"time"
)

// Kind classifies drawing events.
type Kind int

const (
	KindStroke Kind = iota // freehand segment (pencil or eraser)
	KindShape              // finalized rectangle/circle/line/arrow
	KindText
	KindFill  // flood fill from a seed point
	KindClear // wipes the whole board
)

var kindNames = map[Kind]string{
	KindStroke: "stroke",
	KindShape:  "shape",
	KindText:   "text",
	KindFill:   "fill",
	KindClear:  "clear",
}

var kindFromName = map[string]Kind{
	"stroke": KindStroke,
	"shape":  KindShape,
	"text":   KindText,
	"fill":   KindFill,
	"clear":  KindClear,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := kindFromName[s]; ok {
		*k = v
	}
	return nil
}

// Shape vocabulary for KindShape events.
const (
	ShapeRectangle = "rectangle"
	ShapeCircle    = "circle"
	ShapeLine      = "line"
	ShapeArrow     = "arrow"
)

const (
	DefaultColor      = "#000000"
	DefaultStrokeSize = 5
	DefaultEraserSize = 10
	MaxTextLength     = 512
)

// Event is one immutable drawing operation. ID and Timestamp are assigned by
// the server log on append; clients never supply them.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Session   string    `json:"session,omitempty"`
	Kind      Kind      `json:"kind"`

	// Stroke and shape endpoints.
	X1 float64 `json:"x1,omitempty"`
	Y1 float64 `json:"y1,omitempty"`
	X2 float64 `json:"x2,omitempty"`
	Y2 float64 `json:"y2,omitempty"`

	// Text anchor or fill seed.
	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`

	Shape  string  `json:"shape,omitempty"`
	Fill   bool    `json:"fill,omitempty"`
	Text   string  `json:"text,omitempty"`
	Color  string  `json:"color,omitempty"`
	Size   float64 `json:"size,omitempty"`
	Eraser bool    `json:"eraser,omitempty"`
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Normalize coerces a client-submitted payload into a well-formed event.
// Malformed fields are defaulted rather than rejected so the log stays
// replayable no matter what a client sends.
func (e *Event) Normalize() {
	if !colorPattern.MatchString(e.Color) {
		e.Color = DefaultColor
	}
	if e.Size <= 0 || math.IsNaN(e.Size) || math.IsInf(e.Size, 0) {
		if e.Eraser {
			e.Size = DefaultEraserSize
		} else {
			e.Size = DefaultStrokeSize
		}
	}
	e.X1 = finite(e.X1)
	e.Y1 = finite(e.Y1)
	e.X2 = finite(e.X2)
	e.Y2 = finite(e.Y2)

	switch e.Kind {
	case KindShape:
		switch e.Shape {
		case ShapeRectangle, ShapeCircle, ShapeLine, ShapeArrow:
		default:
			e.Shape = ShapeRectangle
		}
	case KindText:
		if len(e.Text) > MaxTextLength {
			e.Text = e.Text[:MaxTextLength]
		}
	case KindFill:
		if e.X < 0 {
			e.X = 0
		}
		if e.Y < 0 {
			e.Y = 0
		}
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
