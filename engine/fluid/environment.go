package fluid

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// CubeFace indexes the six faces of a cube map in GPU layer order.
type CubeFace int

const (
	CubeFacePositiveX CubeFace = iota
	CubeFaceNegativeX
	CubeFacePositiveY
	CubeFaceNegativeY
	CubeFacePositiveZ
	CubeFaceNegativeZ
	CubeFaceCount
)

var cubeFaceNames = [CubeFaceCount]string{"+x", "-x", "+y", "-y", "+z", "-z"}

func (f CubeFace) String() string {
	if f < 0 || f >= CubeFaceCount {
		return fmt.Sprintf("face(%d)", int(f))
	}
	return cubeFaceNames[f]
}

// GridCell locates a face inside a layout image, in face-sized cells.
type GridCell struct {
	Column, Row int
	// Rotate180 marks a face stored upside down in the source image.
	Rotate180 bool
}

// CubeLayout describes how six square faces are packed into one source image.
// Every face occupies one cell of a Columns x Rows grid of equal squares.
type CubeLayout struct {
	Name          string
	Columns, Rows int
	Cells         [CubeFaceCount]GridCell
}

var ErrInvalidLayout = errors.New("invalid cube layout")

// LayoutError reports a source image or layout that violates the cube layout contract.
type LayoutError struct {
	Layout string
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("cube layout %q: %s", e.Layout, e.Reason)
}

func (e *LayoutError) Unwrap() error {
	return ErrInvalidLayout
}

var (
	// LayoutHorizontalCross is the 4x3 cross: -x +z +x -z across the middle row, +y above +z and -y below it.
	LayoutHorizontalCross = CubeLayout{
		Name:    "horizontal-cross",
		Columns: 4,
		Rows:    3,
		Cells: [CubeFaceCount]GridCell{
			CubeFacePositiveX: {Column: 2, Row: 1},
			CubeFaceNegativeX: {Column: 0, Row: 1},
			CubeFacePositiveY: {Column: 1, Row: 0},
			CubeFaceNegativeY: {Column: 1, Row: 2},
			CubeFacePositiveZ: {Column: 1, Row: 1},
			CubeFaceNegativeZ: {Column: 3, Row: 1},
		},
	}

	// LayoutVerticalCross is the 3x4 cross with -z stored upside down below -y.
	LayoutVerticalCross = CubeLayout{
		Name:    "vertical-cross",
		Columns: 3,
		Rows:    4,
		Cells: [CubeFaceCount]GridCell{
			CubeFacePositiveX: {Column: 2, Row: 1},
			CubeFaceNegativeX: {Column: 0, Row: 1},
			CubeFacePositiveY: {Column: 1, Row: 0},
			CubeFaceNegativeY: {Column: 1, Row: 2},
			CubeFacePositiveZ: {Column: 1, Row: 1},
			CubeFaceNegativeZ: {Column: 1, Row: 3, Rotate180: true},
		},
	}

	// LayoutHorizontalStrip stores the faces left to right in layer order.
	LayoutHorizontalStrip = CubeLayout{
		Name:    "horizontal-strip",
		Columns: 6,
		Rows:    1,
		Cells: [CubeFaceCount]GridCell{
			CubeFacePositiveX: {Column: 0},
			CubeFaceNegativeX: {Column: 1},
			CubeFacePositiveY: {Column: 2},
			CubeFaceNegativeY: {Column: 3},
			CubeFacePositiveZ: {Column: 4},
			CubeFaceNegativeZ: {Column: 5},
		},
	}
)

var builtinLayouts = []CubeLayout{LayoutHorizontalCross, LayoutVerticalCross, LayoutHorizontalStrip}

// LayoutByName returns a built-in layout.
//
// Parameters:
//   - name: "horizontal-cross", "vertical-cross" or "horizontal-strip"
//
// Returns:
//   - CubeLayout: the layout
//   - error: a *LayoutError if the name is unknown
func LayoutByName(name string) (CubeLayout, error) {
	for _, l := range builtinLayouts {
		if l.Name == name {
			return l, nil
		}
	}
	return CubeLayout{}, &LayoutError{Layout: name, Reason: "unknown layout"}
}

// Validate checks that every face has its own cell inside the grid.
func (l CubeLayout) Validate() error {
	if l.Columns <= 0 || l.Rows <= 0 {
		return &LayoutError{Layout: l.Name, Reason: fmt.Sprintf("grid is %dx%d", l.Columns, l.Rows)}
	}
	used := make(map[[2]int]CubeFace, CubeFaceCount)
	for f, c := range l.Cells {
		face := CubeFace(f)
		if c.Column < 0 || c.Column >= l.Columns || c.Row < 0 || c.Row >= l.Rows {
			return &LayoutError{Layout: l.Name, Reason: fmt.Sprintf("face %v cell (%d,%d) is outside the %dx%d grid", face, c.Column, c.Row, l.Columns, l.Rows)}
		}
		key := [2]int{c.Column, c.Row}
		if other, ok := used[key]; ok {
			return &LayoutError{Layout: l.Name, Reason: fmt.Sprintf("faces %v and %v share cell (%d,%d)", other, face, c.Column, c.Row)}
		}
		used[key] = face
	}
	return nil
}

// FaceDim returns the face edge length for a source image of the given size. The image must
// divide exactly into the layout's grid of squares.
//
// Parameters:
//   - width, height: the source image size in pixels
//
// Returns:
//   - int: the face edge length in pixels
//   - error: a *LayoutError if the image does not fit the layout
func (l CubeLayout) FaceDim(width, height int) (int, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	if width <= 0 || height <= 0 {
		return 0, &LayoutError{Layout: l.Name, Reason: fmt.Sprintf("image is %dx%d", width, height)}
	}
	if width%l.Columns != 0 || height%l.Rows != 0 {
		return 0, &LayoutError{Layout: l.Name, Reason: fmt.Sprintf("image %dx%d does not divide into %dx%d cells", width, height, l.Columns, l.Rows)}
	}
	dim := width / l.Columns
	if height/l.Rows != dim {
		return 0, &LayoutError{Layout: l.Name, Reason: fmt.Sprintf("image %dx%d has non-square %dx%d cells", width, height, dim, height/l.Rows)}
	}
	return dim, nil
}

// FaceArena holds the pixels of six square RGBA faces in a single allocation.
type FaceArena struct {
	dim int
	buf []byte
}

// NewFaceArena allocates storage for six faces of the given edge length.
func NewFaceArena(dim int) *FaceArena {
	return &FaceArena{dim: dim, buf: make([]byte, int(CubeFaceCount)*dim*dim*4)}
}

// Dim returns the face edge length in pixels.
func (a *FaceArena) Dim() int {
	return a.dim
}

// FaceSize returns the byte size of one face.
func (a *FaceArena) FaceSize() int {
	return a.dim * a.dim * 4
}

// Face returns the pixels of one face. The slice is capped to the face and is nil after Release.
func (a *FaceArena) Face(f CubeFace) []byte {
	if a.buf == nil || f < 0 || f >= CubeFaceCount {
		return nil
	}
	n := a.FaceSize()
	start := int(f) * n
	return a.buf[start : start+n : start+n]
}

// Faces returns all six faces in layer order.
func (a *FaceArena) Faces() [][]byte {
	if a.buf == nil {
		return nil
	}
	out := make([][]byte, CubeFaceCount)
	for f := range CubeFaceCount {
		out[f] = a.Face(f)
	}
	return out
}

// Released reports whether Release has been called.
func (a *FaceArena) Released() bool {
	return a.buf == nil
}

// Release drops the face storage. Slices returned by Face must not be used afterwards.
func (a *FaceArena) Release() {
	a.buf = nil
}

// copyFace copies one cell of src into dst, rotating it when the layout says so.
func copyFace(dst []byte, src *image.RGBA, cell GridCell, dim int) {
	rowBytes := dim * 4
	x0 := src.Rect.Min.X + cell.Column*dim
	y0 := src.Rect.Min.Y + cell.Row*dim
	for y := range dim {
		srcOff := src.PixOffset(x0, y0+y)
		row := src.Pix[srcOff : srcOff+rowBytes]
		if !cell.Rotate180 {
			copy(dst[y*rowBytes:(y+1)*rowBytes], row)
			continue
		}
		dy := dim - 1 - y
		for x := range dim {
			dx := dim - 1 - x
			copy(dst[dy*rowBytes+dx*4:dy*rowBytes+dx*4+4], row[x*4:x*4+4])
		}
	}
}

// ExtractFaces partitions a layout image into six faces, one worker task per face.
//
// Parameters:
//   - img: the source image
//   - layout: the layout the image is packed in
//   - pool: the worker pool the copies run on
//
// Returns:
//   - *FaceArena: the faces in layer order
//   - error: a *LayoutError if the image does not fit the layout
func ExtractFaces(img *image.RGBA, layout CubeLayout, pool worker.DynamicWorkerPool) (*FaceArena, error) {
	if img == nil {
		return nil, &LayoutError{Layout: layout.Name, Reason: "no image"}
	}
	dim, err := layout.FaceDim(img.Rect.Dx(), img.Rect.Dy())
	if err != nil {
		return nil, err
	}

	arena := NewFaceArena(dim)
	var wg sync.WaitGroup
	wg.Add(int(CubeFaceCount))
	for f := range CubeFaceCount {
		pool.SubmitTask(worker.Task{
			ID:      int(f),
			Payload: f,
			Do: func() (any, error) {
				defer wg.Done()
				copyFace(arena.Face(f), img, layout.Cells[f], dim)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return arena, nil
}
