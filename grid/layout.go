package grid

import "image"

// Layout is the grid geometry: equal-width columns separated and surrounded
// by Padding, cells Aspect times as tall as wide.
type Layout struct {
	Width   float64
	Columns int
	Padding float64
	Aspect  float64
}

// DefaultLayout matches a phone-width two-column photo grid.
func DefaultLayout(width float64) Layout {
	return Layout{Width: width, Columns: 2, Padding: 10, Aspect: 0.75}
}

func (l Layout) normalized() Layout {
	if l.Columns < 1 {
		l.Columns = 1
	}
	if l.Padding < 0 {
		l.Padding = 0
	}
	if l.Aspect <= 0 {
		l.Aspect = 0.75
	}
	return l
}

// CellSize returns the width and height of one cell.
func (l Layout) CellSize() (w, h float64) {
	l = l.normalized()
	w = (l.Width - l.Padding*float64(l.Columns+1)) / float64(l.Columns)
	if w < 0 {
		w = 0
	}
	return w, w * l.Aspect
}

// Frame returns the integer frame of the item at index, in content
// coordinates.
func (l Layout) Frame(index int) image.Rectangle {
	l = l.normalized()
	w, h := l.CellSize()
	row, col := index/l.Columns, index%l.Columns
	x := l.Padding + float64(col)*(w+l.Padding)
	y := l.Padding + float64(row)*(h+l.Padding)
	return image.Rect(int(x), int(y), int(x+w), int(y+h))
}

// VisibleItems returns how many items a viewport of the given height can
// show at once, counting a partially visible extra row.
func (l Layout) VisibleItems(viewHeight float64) int {
	l = l.normalized()
	_, h := l.CellSize()
	if h <= 0 {
		return l.Columns
	}
	rows := int((viewHeight-l.Padding)/(h+l.Padding)) + 1
	if rows < 1 {
		rows = 1
	}
	return rows * l.Columns
}
