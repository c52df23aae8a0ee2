// Package terminal draws render frames onto a tcell screen.
package terminal

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/bodybasics/posetrack/pkg/core"
)

// Glyphs used for drawing
const (
	GlyphBoneConfirmed = '*'
	GlyphBoneInferred  = '.'
	GlyphJoint         = 'o'
	GlyphHandOpen      = 'O'
	GlyphHandClosed    = 'C'
	GlyphHandLasso     = 'L'
	GlyphHighlight     = '@'
	GlyphEdge          = '#'
)

// palette is indexed by BodyRender.ColorIndex
var palette = [...]tcell.Color{
	tcell.ColorRed,
	tcell.ColorOrange,
	tcell.ColorGreen,
	tcell.ColorBlue,
	tcell.ColorIndigo,
	tcell.ColorViolet,
}

var (
	inferredStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	edgeStyle     = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	statusStyle   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

// Sink renders frames to a terminal screen. The bottom row is the status
// line; the rest is the display area.
type Sink struct {
	screen tcell.Screen
	owned  bool
	logger zerolog.Logger

	mu     sync.Mutex
	status core.SensorStatus
	last   *core.RenderFrame
	closed bool
}

// New creates a terminal sink. A nil screen opens the real terminal in Init.
func New(screen tcell.Screen, logger zerolog.Logger) *Sink {
	return &Sink{
		screen: screen,
		logger: logger.With().Str("sink", "terminal").Logger(),
	}
}

// Init opens the terminal when no screen was supplied.
func (s *Sink) Init() error {
	if s.screen != nil {
		return nil
	}
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("error creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("error initialising screen: %w", err)
	}
	s.screen = screen
	s.owned = true
	return nil
}

// Close restores the terminal if the sink opened it.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned {
		s.screen.Fini()
	}
	return nil
}

// WriteFrame redraws the screen from the frame.
func (s *Sink) WriteFrame(f *core.RenderFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.last = f
	s.draw()
	return nil
}

// SetStatus updates the status line.
func (s *Sink) SetStatus(status core.SensorStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.status = status
	s.draw()
	return nil
}

func (s *Sink) draw() {
	s.screen.Clear()
	w, h := s.screen.Size()
	if w <= 0 || h <= 1 {
		s.screen.Show()
		return
	}

	if f := s.last; f != nil {
		v := newViewport(f.Width, f.Height, w, h-1)

		for _, e := range f.Edges {
			s.fillRect(v, e.Rect)
		}
		for i := range f.Bodies {
			s.drawBody(v, &f.Bodies[i])
		}
	}

	s.drawStatus(w, h-1)
	s.screen.Show()
}

func (s *Sink) drawBody(v viewport, b *core.BodyRender) {
	color := palette[b.ColorIndex%len(palette)]
	bodyStyle := tcell.StyleDefault.Foreground(color)

	for _, bone := range b.Bones {
		glyph, style := GlyphBoneConfirmed, bodyStyle
		if bone.Tier == core.TierInferred {
			glyph, style = GlyphBoneInferred, inferredStyle
		}
		x0, y0, x1, y1, ok := v.clip(bone.From, bone.To)
		if !ok {
			continue
		}
		line(x0, y0, x1, y1, func(x, y int) {
			s.put(v, x, y, glyph, style)
		})
	}

	for _, j := range b.Joints {
		style := bodyStyle
		if j.Tier == core.TierInferred {
			style = inferredStyle
		}
		x, y := v.cell(j.Point)
		s.put(v, x, y, GlyphJoint, style)
	}

	for _, hand := range b.Hands {
		x, y := v.cell(hand.Point)
		s.put(v, x, y, handGlyph(hand.State), bodyStyle.Bold(true))
	}

	for _, hl := range b.Highlights {
		x, y := v.cell(hl.Point)
		s.put(v, x, y, GlyphHighlight, bodyStyle.Reverse(true))
	}
}

func (s *Sink) drawStatus(w, row int) {
	var sb strings.Builder
	sb.WriteString(s.status.Text())
	if f := s.last; f != nil {
		fmt.Fprintf(&sb, " | frame %d | bodies %d", f.Sequence, len(f.Bodies))
		for i := range f.Bodies {
			if detected := f.Bodies[i].Detected(); len(detected) > 0 {
				names := make([]string, len(detected))
				for k, d := range detected {
					names[k] = string(d)
				}
				fmt.Fprintf(&sb, " | %d: %s", f.Bodies[i].Slot, strings.Join(names, ","))
			}
		}
	}

	x := 0
	for _, r := range sb.String() {
		if x >= w {
			break
		}
		s.screen.SetContent(x, row, r, nil, statusStyle)
		x++
	}
	for ; x < w; x++ {
		s.screen.SetContent(x, row, ' ', nil, statusStyle)
	}
}

func (s *Sink) fillRect(v viewport, r core.Rect) {
	x0, y0 := v.cell(core.Point2D{X: r.X, Y: r.Y})
	x1, y1 := v.cell(core.Point2D{X: r.X + r.Width, Y: r.Y + r.Height})
	// thin rects still cover one cell
	if x1 > x0 {
		x1--
	}
	if y1 > y0 {
		y1--
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			s.put(v, x, y, GlyphEdge, edgeStyle)
		}
	}
}

func (s *Sink) put(v viewport, x, y int, r rune, style tcell.Style) {
	if x < 0 || y < 0 || x >= v.cols || y >= v.rows {
		return
	}
	s.screen.SetContent(x, y, r, nil, style)
}

func handGlyph(h core.HandState) rune {
	switch h {
	case core.HandClosed:
		return GlyphHandClosed
	case core.HandLasso:
		return GlyphHandLasso
	default:
		return GlyphHandOpen
	}
}

// viewport maps display space onto a grid of terminal cells.
type viewport struct {
	sx, sy     float64
	cols, rows int
}

func newViewport(width, height float64, cols, rows int) viewport {
	v := viewport{cols: cols, rows: rows}
	if width > 0 {
		v.sx = float64(cols) / width
	}
	if height > 0 {
		v.sy = float64(rows) / height
	}
	return v
}

// cell returns the cell containing p. Off-grid coordinates are clamped to
// -1 or the grid size, so put ignores them and callers never convert an
// out-of-range float to int.
func (v viewport) cell(p core.Point2D) (int, int) {
	return cellIndex(p.X*v.sx, v.cols), cellIndex(p.Y*v.sy, v.rows)
}

func cellIndex(f float64, n int) int {
	switch {
	case math.IsNaN(f) || f < 0:
		return -1
	case f >= float64(n):
		return n
	default:
		return int(f)
	}
}

// clip cuts the segment a-b to the visible grid (Liang-Barsky) and returns
// its end cells. ok is false when no part of the segment is visible.
func (v viewport) clip(a, b core.Point2D) (x0, y0, x1, y1 int, ok bool) {
	ax, ay := a.X*v.sx, a.Y*v.sy
	bx, by := b.X*v.sx, b.Y*v.sy
	if !finite(ax) || !finite(ay) || !finite(bx) || !finite(by) || v.cols <= 0 || v.rows <= 0 {
		return 0, 0, 0, 0, false
	}

	// keep the far edge inside the last cell
	maxX := math.Nextafter(float64(v.cols), 0)
	maxY := math.Nextafter(float64(v.rows), 0)

	dx, dy := bx-ax, by-ay
	t0, t1 := 0.0, 1.0
	for _, e := range [4][2]float64{
		{-dx, ax},
		{dx, maxX - ax},
		{-dy, ay},
		{dy, maxY - ay},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = math.Min(t1, r)
		}
	}

	clamp := func(f, hi float64) int { return int(math.Min(math.Max(f, 0), hi)) }
	x0, y0 = clamp(ax+t0*dx, maxX), clamp(ay+t0*dy, maxY)
	x1, y1 = clamp(ax+t1*dx, maxX), clamp(ay+t1*dy, maxY)
	return x0, y0, x1, y1, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// line calls plot for every cell on the segment from (x0,y0) to (x1,y1).
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
