package telnet

import "fmt"

// Default terminal size assumed until the client reports its own.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Dimensions is a session's terminal size.  It belongs to exactly one
// session: the decoder writes it when a NAWS report arrives and the
// line writer reads it, both from the session's goroutine.
type Dimensions struct {
	Width  int
	Height int
}

// DefaultDimensions returns 80×24.
func DefaultDimensions() *Dimensions {
	return &Dimensions{Width: DefaultWidth, Height: DefaultHeight}
}

// Set applies a window-size report.  A zero component means the client
// does not know that value, so it leaves the current one in place.
// Set reports whether anything changed.
func (d *Dimensions) Set(width, height int) bool {
	changed := false
	if width > 0 && width != d.Width {
		d.Width = width
		changed = true
	}
	if height > 0 && height != d.Height {
		d.Height = height
		changed = true
	}
	return changed
}

// Columns returns the wrap width, falling back to the default for a
// zero value.
func (d *Dimensions) Columns() int {
	if d == nil || d.Width <= 0 {
		return DefaultWidth
	}
	return d.Width
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}
