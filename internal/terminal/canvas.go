package terminal

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/spigell/resume-tuner/internal/chart"
)

const barWidth = 30

var _ chart.Canvas = (*BarCanvas)(nil)

// BarCanvas draws charts as a single stacked bar.
type BarCanvas struct {
	mu    sync.Mutex
	out   io.Writer
	alive int
}

func NewBarCanvas(out io.Writer) *BarCanvas {
	return &BarCanvas{out: out}
}

func (c *BarCanvas) Draw(slices []chart.Slice) chart.Chart {
	c.mu.Lock()
	defer c.mu.Unlock()

	var bar, legend strings.Builder
	used := 0
	for i, slice := range slices {
		width := int(math.Round(slice.Value / 100 * barWidth))
		if i == len(slices)-1 {
			width = barWidth - used
		}
		width = max(0, min(width, barWidth-used))
		used += width

		style := sliceStyle(slice.Label)
		bar.WriteString(style.Render(strings.Repeat("█", width)))
		if i > 0 {
			legend.WriteString("  ")
		}
		legend.WriteString(style.Render(fmt.Sprintf("%s %.0f%%", slice.Label, slice.Value)))
	}

	fmt.Fprintf(c.out, "%s\n%s\n", bar.String(), legend.String())
	c.alive++

	return &barChart{canvas: c}
}

// Alive reports how many drawn charts have not been destroyed.
func (c *BarCanvas) Alive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

type barChart struct {
	canvas    *BarCanvas
	destroyed bool
}

func (b *barChart) Destroy() {
	b.canvas.mu.Lock()
	defer b.canvas.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.canvas.alive--
}

func sliceStyle(label string) lipgloss.Style {
	if label == chart.LabelMatched {
		return styleMatched
	}
	return styleMissing
}
