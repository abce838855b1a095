package viz

import (
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a grid of braille cells. Pixel coordinates run over
// (Width*2) x (Height*4) with y pointing down.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Trajectory projects frames onto the plane of coordinates ax and ay
// (0=x, 1=y, 2=z) and traces every atom's path across frames. Both axes
// share one scale so distances are not distorted.
func Trajectory(frames [][][3]float64, ax, ay, w, h int) string {
	c := NewCanvas(w, h)
	if len(frames) == 0 {
		return c.String()
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, f := range frames {
		for _, p := range f {
			minX, maxX = math.Min(minX, p[ax]), math.Max(maxX, p[ax])
			minY, maxY = math.Min(minY, p[ay]), math.Max(maxY, p[ay])
		}
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	pw, ph := float64(w*2-1), float64(h*4-1)
	scale := math.Min(pw, ph) / span
	project := func(p [3]float64) (int, int) {
		return int(math.Round((p[ax] - minX) * scale)), int(math.Round(ph - (p[ay]-minY)*scale))
	}

	for atom := range frames[0] {
		x0, y0 := project(frames[0][atom])
		c.Set(x0, y0)
		for _, f := range frames[1:] {
			if atom >= len(f) {
				break
			}
			x1, y1 := project(f[atom])
			c.DrawLine(x0, y0, x1, y1)
			x0, y0 = x1, y1
		}
	}
	return c.String()
}
