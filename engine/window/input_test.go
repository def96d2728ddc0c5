package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDragTrackerReportsDeltas(t *testing.T) {
	var d DragTracker
	_, _, _, ok := d.Move(10, 10)
	assert.False(t, ok)

	d.Button(MouseButtonLeft, true, 100, 50)
	btn, dx, dy, ok := d.Move(110, 45)
	assert.True(t, ok)
	assert.Equal(t, MouseButtonLeft, btn)
	assert.Equal(t, float32(10), dx)
	assert.Equal(t, float32(-5), dy)

	_, dx, dy, _ = d.Move(110, 45)
	assert.Zero(t, dx)
	assert.Zero(t, dy)

	d.Button(MouseButtonLeft, false, 110, 45)
	assert.False(t, d.Dragging())
}

func TestDragTrackerKeepsFirstButton(t *testing.T) {
	var d DragTracker
	d.Button(MouseButtonMiddle, true, 0, 0)
	d.Button(MouseButtonLeft, true, 0, 0)

	btn, _, _, ok := d.Move(3, 4)
	assert.True(t, ok)
	assert.Equal(t, MouseButtonMiddle, btn)

	d.Button(MouseButtonLeft, false, 3, 4)
	assert.True(t, d.Dragging())
	d.Button(MouseButtonMiddle, false, 3, 4)
	assert.False(t, d.Dragging())
}

func TestMouseButtonString(t *testing.T) {
	assert.Equal(t, "left", MouseButtonLeft.String())
	assert.Equal(t, "middle", MouseButtonMiddle.String())
	assert.Equal(t, "unknown", MouseButton(9).String())
}
