// Package chart renders the match proportion of an analysis as a single live chart.
package chart

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/resume-tuner/internal/resume"
)

const (
	LabelMatched = "Matched"
	LabelMissing = "Missing"
)

type Slice struct {
	Label string
	Value float64
}

// Chart is a drawn chart instance.
type Chart interface {
	Destroy()
}

// Canvas creates chart instances.
type Canvas interface {
	Draw(slices []Slice) Chart
}

// Renderer owns at most one chart instance at a time.
type Renderer struct {
	mu      sync.Mutex
	canvas  Canvas
	logger  *zap.Logger
	current Chart
}

func NewRenderer(canvas Canvas, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{canvas: canvas, logger: logger}
}

// Render replaces the held chart with a two-slice chart of the match percentage
// and its complement.
func (r *Renderer) Render(result resume.MatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.destroyLocked()

	matched := resume.ClampPercentage(result.MatchPercentage)
	r.current = r.canvas.Draw([]Slice{
		{Label: LabelMatched, Value: matched},
		{Label: LabelMissing, Value: 100 - matched},
	})

	r.logger.Debug("match chart rendered", zap.Float64("matched", matched))
}

// Destroy releases the held chart, if any.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.destroyLocked()
}

func (r *Renderer) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current != nil
}

func (r *Renderer) destroyLocked() {
	if r.current == nil {
		return
	}
	r.current.Destroy()
	r.current = nil
}
