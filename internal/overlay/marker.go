// Package overlay draws action markers onto recorded frames.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// MarkerKind selects how a marker is drawn
type MarkerKind int

const (
	MarkerClick MarkerKind = iota
	MarkerScroll
)

// Marker is an action drawn on top of the frame it was taken on
type Marker struct {
	X, Y   int
	Kind   MarkerKind
	DX, DY int  // scroll direction, MarkerScroll only
	Failed bool // the action returned an error
}

var (
	rippleColor = color.RGBA{66, 133, 244, 100} // semi-transparent blue
	failedColor = color.RGBA{219, 68, 55, 160}  // semi-transparent red
	scrollColor = color.RGBA{15, 157, 88, 200}
)

// Apply returns a copy of frame with markers drawn on it. frame is left untouched.
func Apply(frame image.Image, markers []Marker) image.Image {
	bounds := frame.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, frame, bounds.Min, draw.Src)

	for _, m := range markers {
		x, y := bounds.Min.X+m.X, bounds.Min.Y+m.Y
		switch m.Kind {
		case MarkerClick:
			c := rippleColor
			if m.Failed {
				c = failedColor
			}
			drawClickRipple(result, x, y, c)
			drawCursor(result, x, y)
		case MarkerScroll:
			drawScrollArrow(result, x, y, m.DX, m.DY)
			drawCursor(result, x, y)
		}
	}
	return result
}

// drawCursor draws a simple arrow cursor
func drawCursor(img *image.RGBA, x, y int) {
	outline := color.RGBA{0, 0, 0, 255}
	fill := color.RGBA{255, 255, 255, 255}

	cursorPoints := []struct{ dx, dy int }{
		{0, 0},
		{0, 16},
		{4, 12},
		{7, 18},
		{10, 17},
		{7, 11},
		{12, 11},
	}

	for dy := 0; dy < 18; dy++ {
		for dx := 0; dx < 13; dx++ {
			if isInsideCursor(dx, dy) {
				setPixelSafe(img, x+dx, y+dy, fill)
			}
		}
	}

	for i := 0; i < len(cursorPoints); i++ {
		p1 := cursorPoints[i]
		p2 := cursorPoints[(i+1)%len(cursorPoints)]
		drawLine(img, x+p1.dx, y+p1.dy, x+p2.dx, y+p2.dy, outline)
	}
}

// isInsideCursor checks if a point is inside the cursor shape
func isInsideCursor(dx, dy int) bool {
	if dy < 0 || dy > 16 || dx < 0 {
		return false
	}
	if dy <= 11 {
		return dx <= dy*12/16
	}
	// shaft
	return dx <= 4
}

// drawScrollArrow draws a short arrow from (x, y) pointing along (dx, dy)
func drawScrollArrow(img *image.RGBA, x, y, dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	const length = 40.0
	angle := math.Atan2(float64(dy), float64(dx))
	tx := x + int(length*math.Cos(angle))
	ty := y + int(length*math.Sin(angle))

	for off := -1; off <= 1; off++ {
		drawLine(img, x+off, y, tx+off, ty, scrollColor)
		drawLine(img, x, y+off, tx, ty+off, scrollColor)
	}
	for _, wing := range []float64{math.Pi * 5 / 6, -math.Pi * 5 / 6} {
		wx := tx + int(12*math.Cos(angle+wing))
		wy := ty + int(12*math.Sin(angle+wing))
		drawLine(img, tx, ty, wx, wy, scrollColor)
	}
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawClickRipple draws a circle around the click point
func drawClickRipple(img *image.RGBA, x, y int, c color.RGBA) {
	radius := 15
	for angle := 0.0; angle < 360; angle += 1 {
		rad := angle * math.Pi / 180
		px := x + int(float64(radius)*math.Cos(rad))
		py := y + int(float64(radius)*math.Sin(rad))
		setPixelSafe(img, px, py, c)
		setPixelSafe(img, px+1, py, c)
		setPixelSafe(img, px, py+1, c)
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
