package model

// DrawingType is the kind of chart annotation.
type DrawingType string

const (
	DrawingHLine     DrawingType = "hline"
	DrawingTrendline DrawingType = "trendline"
	DrawingChannel   DrawingType = "channel"
	DrawingFib       DrawingType = "fib"
	DrawingRect      DrawingType = "rect"
)

// Point is a raw chart coordinate. Time is Unix milliseconds.
type Point struct {
	Time  int64   `json:"time" yaml:"time"`
	Price float64 `json:"price" yaml:"price"`
}

// DrawingSpec is a geometric annotation owned by the chart UI.
// Alerts reference it by ID when TargetType is "drawing".
type DrawingSpec struct {
	ID     string      `json:"id" yaml:"id"`
	Symbol string      `json:"symbol" yaml:"symbol"`
	Type   DrawingType `json:"type" yaml:"type"`
	Points []Point     `json:"points" yaml:"points"`
	Color  string      `json:"color,omitempty" yaml:"color"`
	Width  int         `json:"width,omitempty" yaml:"width"`
}
