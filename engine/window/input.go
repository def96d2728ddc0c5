package window

// Key identifies a physical keyboard key by its GLFW key code. The common package names
// the codes the viewer binds.
type Key uint32

// MouseButton identifies a mouse button.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

func (b MouseButton) String() string {
	switch b {
	case MouseButtonLeft:
		return "left"
	case MouseButtonRight:
		return "right"
	case MouseButtonMiddle:
		return "middle"
	}
	return "unknown"
}

// DragTracker turns button and cursor events into drag deltas. Only the first button
// pressed drives a drag; other presses are ignored until it is released.
// Not thread-safe; feed it from the window's event callbacks.
type DragTracker struct {
	button   MouseButton
	dragging bool
	lastX    int32
	lastY    int32
}

// Button records a press or release.
//
// Parameters:
//   - button: the mouse button
//   - pressed: true for a press, false for a release
//   - x, y: the cursor position at the event
func (d *DragTracker) Button(button MouseButton, pressed bool, x, y int32) {
	if pressed {
		if d.dragging {
			return
		}
		d.button, d.dragging = button, true
		d.lastX, d.lastY = x, y
		return
	}
	if d.dragging && d.button == button {
		d.dragging = false
	}
}

// Move records a cursor move.
//
// Parameters:
//   - x, y: the new cursor position
//
// Returns:
//   - MouseButton: the button driving the drag
//   - float32, float32: the movement since the previous event in pixels
//   - bool: false when no button is held
func (d *DragTracker) Move(x, y int32) (MouseButton, float32, float32, bool) {
	if !d.dragging {
		return 0, 0, 0, false
	}
	dx, dy := float32(x-d.lastX), float32(y-d.lastY)
	d.lastX, d.lastY = x, y
	return d.button, dx, dy, true
}

// Dragging reports whether a button is held.
func (d *DragTracker) Dragging() bool {
	return d.dragging
}
