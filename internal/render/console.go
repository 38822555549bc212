package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dooshek/vumeter/internal/meter"
	"github.com/fatih/color"
)

var (
	scaleGreen  = color.New(color.FgGreen)
	scaleYellow = color.New(color.FgYellow)
	scaleRed    = color.New(color.FgRed)
	needleStyle = color.New(color.FgWhite, color.Bold)
	ledOn       = color.New(color.FgRed, color.Bold)
	ledOff      = color.New(color.FgHiBlack)
)

const (
	scaleMark  = "─"
	needleMark = "┃"
)

// Console draws the needle as a one-line gauge on a terminal, rewriting
// the line in place.
type Console struct {
	out   io.Writer
	width int
	left  float64
	right float64
	last  string
}

// NewConsole returns a gauge width cells wide spanning the calibration's
// angular limits.
func NewConsole(out io.Writer, cal meter.Calibration, width int) *Console {
	if width < 2 {
		width = 2
	}
	return &Console{out: out, width: width, left: cal.LeftLimit, right: cal.RightLimit}
}

// Position returns the gauge cell the needle points at.
func (c *Console) Position(theta float64) int {
	pos := int(math.Round((c.left - theta) / (c.left - c.right) * float64(c.width-1)))
	return max(0, min(c.width-1, pos))
}

func (c *Console) Draw(frame meter.Frame) error {
	pos := c.Position(frame.Level.Theta)

	var b strings.Builder
	b.WriteString("\r")
	for i := 0; i < c.width; i++ {
		if i == pos {
			b.WriteString(needleStyle.Sprint(needleMark))
			continue
		}
		zone := float64(i) / float64(c.width)
		switch {
		case zone >= 0.8:
			b.WriteString(scaleRed.Sprint(scaleMark))
		case zone >= 0.6:
			b.WriteString(scaleYellow.Sprint(scaleMark))
		default:
			b.WriteString(scaleGreen.Sprint(scaleMark))
		}
	}

	fmt.Fprintf(&b, " %6.1f dB ", frame.Level.LevelDB)
	if frame.Overload {
		b.WriteString(ledOn.Sprint("● OVL"))
	} else {
		b.WriteString(ledOff.Sprint("○ OVL"))
	}

	line := b.String()
	if line == c.last {
		return nil
	}
	if _, err := io.WriteString(c.out, line); err != nil {
		return fmt.Errorf("failed to draw gauge: %w", err)
	}
	c.last = line
	return nil
}
