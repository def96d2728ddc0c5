package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-fluid/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	up [3]float32

	fovDegrees float32
	near       float32
	far        float32

	viewportWidth  int
	viewportHeight int

	modelViewMatrix         [16]float32
	projectionMatrix        [16]float32
	inverseProjectionMatrix [16]float32

	controller CameraController
}

// State is a plain-number snapshot of the camera for one frame. It carries no GPU
// handles and is what the fluid renderer consumes before each display.
type State struct {
	// ModelView is the world-to-view matrix (column-major).
	ModelView [16]float32
	// Projection is the view-to-clip matrix (column-major, WebGPU depth range).
	Projection [16]float32
	// Position is the camera's world-space position.
	Position [3]float32
	// Near and Far are the clipping plane distances.
	Near, Far float32
	// FovY is the vertical field of view in degrees.
	FovY float32
	// ViewportWidth and ViewportHeight are the target surface dimensions in pixels.
	ViewportWidth, ViewportHeight int
}

// Camera defines the interface for the viewer camera.
// The camera holds perspective settings and computes the model-view and projection
// matrices from an attached CameraController each frame via Update().
type Camera interface {
	// FovY returns the vertical field of view in degrees.
	//
	// Returns:
	//   - float32: field of view in degrees
	FovY() float32

	// Aspect returns the aspect ratio (width / height) derived from the viewport.
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Viewport returns the viewport size in pixels.
	//
	// Returns:
	//   - width, height: the viewport dimensions
	Viewport() (width, height int)

	// ModelViewMatrix returns the current world-to-view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the model-view matrix
	ModelViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// InverseProjectionMatrix returns the inverse of the current projection matrix.
	//
	// Returns:
	//   - [16]float32: the inverse projection matrix
	InverseProjectionMatrix() [16]float32

	// Controller returns the attached CameraController, or nil.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// Snapshot captures the current matrices and settings as a plain State value.
	//
	// Returns:
	//   - State: the camera state for this frame
	Snapshot() State

	// Update reads position/target from the controller and recomputes matrices.
	// Should be called once per frame. If no controller is attached, this does nothing.
	Update()

	// SetFovY sets the vertical field of view in degrees and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in degrees
	SetFovY(fov float32)

	// SetViewport sets the viewport size (and therefore the aspect ratio) and recomputes matrices.
	// Non-positive dimensions are ignored, which happens while a window is minimized.
	//
	// Parameters:
	//   - width, height: the viewport dimensions in pixels
	SetViewport(width, height int)

	// SetClipPlanes sets the near and far plane distances and recomputes matrices.
	//
	// Parameters:
	//   - near: near plane distance (> 0)
	//   - far: far plane distance (> near)
	SetClipPlanes(near, far float32)

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with the viewer's default perspective: 60 degree
// vertical field of view, near plane 1, far plane 400, and a 640x480 viewport.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:             &sync.Mutex{},
		up:             [3]float32{0, 1, 0},
		fovDegrees:     60.0,
		near:           1.0,
		far:            400.0,
		viewportWidth:  640,
		viewportHeight: 480,
	}
	common.Identity(c.modelViewMatrix[:])
	common.Identity(c.projectionMatrix[:])
	common.Identity(c.inverseProjectionMatrix[:])
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) FovY() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fovDegrees
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect()
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Viewport() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewportWidth, c.viewportHeight
}

func (c *cameraImpl) ModelViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modelViewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		ModelView:      c.modelViewMatrix,
		Projection:     c.projectionMatrix,
		Near:           c.near,
		Far:            c.far,
		FovY:           c.fovDegrees,
		ViewportWidth:  c.viewportWidth,
		ViewportHeight: c.viewportHeight,
	}
	if c.controller != nil {
		s.Position[0], s.Position[1], s.Position[2] = c.controller.Position()
	}
	return s
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.updateMatrices()
}

func (c *cameraImpl) SetFovY(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fovDegrees = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewportWidth = width
	c.viewportHeight = height
	c.updateMatrices()
}

func (c *cameraImpl) SetClipPlanes(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

// aspect derives width/height from the viewport. Caller must hold the mutex.
func (c *cameraImpl) aspect() float32 {
	if c.viewportHeight == 0 {
		return 1
	}
	return float32(c.viewportWidth) / float32(c.viewportHeight)
}

// updateMatrices recalculates the model-view, projection and inverse projection matrices.
// The projection is always rebuilt; the model-view only when a controller is attached.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	common.Perspective(c.projectionMatrix[:],
		common.DegToRad(c.fovDegrees), c.aspect(), c.near, c.far,
	)
	common.Invert4(c.inverseProjectionMatrix[:], c.projectionMatrix[:])

	if c.controller == nil {
		return
	}

	px, py, pz := c.controller.Position()
	tx, ty, tz := c.controller.Target()

	common.LookAt(c.modelViewMatrix[:],
		px, py, pz,
		tx, ty, tz,
		c.up[0], c.up[1], c.up[2],
	)
}
