package fluid

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fluid/common"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var ErrNoSkybox = errors.New("no skybox loaded")

var clampSampler = common.SamplerStagingData{
	AddressModeU: wgpu.AddressModeClampToEdge,
	AddressModeV: wgpu.AddressModeClampToEdge,
	AddressModeW: wgpu.AddressModeClampToEdge,
}

// skyboxSet is one loaded skybox: a texture and bind group per wall.
type skyboxSet struct {
	arena     *FaceArena
	textures  [CubeFaceCount]renderer.Texture
	providers [CubeFaceCount]bind_group_provider.BindGroupProvider
}

func (s *skyboxSet) release() {
	if s == nil {
		return
	}
	for f := range CubeFaceCount {
		if s.providers[f] != nil {
			s.providers[f].Release()
		}
		if s.textures[f] != nil {
			s.textures[f].Release()
		}
	}
	if s.arena != nil {
		s.arena.Release()
	}
}

// cubemapSet is one loaded reflection cube map.
type cubemapSet struct {
	arena    *FaceArena
	texture  renderer.Texture
	provider bind_group_provider.BindGroupProvider
}

func (c *cubemapSet) release() {
	if c == nil {
		return
	}
	if c.provider != nil {
		c.provider.Release()
	}
	if c.texture != nil {
		c.texture.Release()
	}
	if c.arena != nil {
		c.arena.Release()
	}
}

// Environment owns the skybox walls and the reflection cube map. Both are loaded from a
// single layout image each and stay immutable until reloaded or released.
type Environment struct {
	mu   sync.Mutex
	r    renderer.Renderer
	pool worker.DynamicWorkerPool

	cubeLayout   CubeLayout
	skyboxLayout CubeLayout

	// background reads one skybox face per wall, composite reads the cube map.
	background *PassProgram
	composite  *PassProgram

	walls   [CubeFaceCount]bind_group_provider.BindGroupProvider
	skybox  *skyboxSet
	cubemap *cubemapSet
}

// NewEnvironment creates the skybox walls and a 1x1 white cube map so the composite pass
// always has an environment to bind. Either program may be nil when its pass failed to link.
//
// Parameters:
//   - r: the renderer that owns the GPU resources
//   - pool: the worker pool face extraction runs on
//   - background: the background pass program
//   - composite: the composite pass program
//   - cubeLayout: the layout reflection cube map images are packed in
//   - skyboxLayout: the layout skybox images are packed in
//
// Returns:
//   - *Environment: the environment
//   - error: a failure creating the walls or the fallback cube map
func NewEnvironment(r renderer.Renderer, pool worker.DynamicWorkerPool, background, composite *PassProgram, cubeLayout, skyboxLayout CubeLayout) (*Environment, error) {
	if err := cubeLayout.Validate(); err != nil {
		return nil, err
	}
	if err := skyboxLayout.Validate(); err != nil {
		return nil, err
	}
	e := &Environment{
		r:            r,
		pool:         pool,
		cubeLayout:   cubeLayout,
		skyboxLayout: skyboxLayout,
		background:   background,
		composite:    composite,
	}

	walls, err := newSkyboxWalls(r)
	if err != nil {
		return nil, err
	}
	e.walls = walls

	if composite != nil {
		white := NewFaceArena(1)
		for _, face := range white.Faces() {
			copy(face, []byte{255, 255, 255, 255})
		}
		cube, err := e.uploadCubemap("Fallback Cubemap", white)
		if err != nil {
			e.Release()
			return nil, err
		}
		e.cubemap = cube
	}
	return e, nil
}

// LoadSkybox decodes a layout image and replaces the skybox walls' textures. On failure the
// previous skybox stays in place.
//
// Parameters:
//   - path: the image file
//
// Returns:
//   - error: a decode, layout or upload failure naming the file
func (e *Environment) LoadSkybox(path string) error {
	if e.background == nil {
		return e.fail("skybox", path, ErrProgramUnavailable)
	}
	faceSlot, ok := e.background.EnvironmentSlot(shader.AnnotationArgSkyboxFace)
	if !ok {
		return e.fail("skybox", path, fmt.Errorf("%w: %s", ErrUnknownRole, shader.AnnotationArgSkyboxFace))
	}
	samplerSlot, ok := e.background.EnvironmentSlot(shader.AnnotationArgSkyboxSampler)
	if !ok {
		return e.fail("skybox", path, fmt.Errorf("%w: %s", ErrUnknownRole, shader.AnnotationArgSkyboxSampler))
	}

	arena, err := e.extract(path, e.skyboxLayout)
	if err != nil {
		return e.fail("skybox", path, err)
	}

	set := &skyboxSet{arena: arena}
	layout := e.background.Layout(faceSlot.Group)
	dim := arena.Dim()
	for f := range CubeFaceCount {
		tex, err := e.r.UploadTexture(renderer.TextureDescriptor{
			Label:  "Skybox " + f.String(),
			Width:  dim,
			Height: dim,
			Format: wgpu.TextureFormatRGBA8Unorm,
		}, [][]byte{arena.Face(f)})
		if err != nil {
			set.release()
			return e.fail("skybox", path, err)
		}
		set.textures[f] = tex

		provider := bind_group_provider.NewBindGroupProvider("Skybox Face "+f.String(),
			bind_group_provider.WithTextureView(faceSlot.Binding, tex.View()))
		set.providers[f] = provider
		if err := e.r.InitSampler(provider, samplerSlot.Binding, clampSampler); err != nil {
			set.release()
			return e.fail("skybox", path, err)
		}
		if err := e.r.InitBindGroup(provider, layout, nil, nil); err != nil {
			set.release()
			return e.fail("skybox", path, err)
		}
	}

	e.mu.Lock()
	old := e.skybox
	e.skybox = set
	e.mu.Unlock()
	old.release()
	log.Printf("[Environment] skybox %s loaded (%dpx faces, %s)", path, dim, e.skyboxLayout.Name)
	return nil
}

// LoadCubeMap decodes a layout image and replaces the reflection cube map. On failure the
// previous cube map stays in place.
//
// Parameters:
//   - path: the image file
//
// Returns:
//   - error: a decode, layout or upload failure naming the file
func (e *Environment) LoadCubeMap(path string) error {
	if e.composite == nil {
		return e.fail("cubemap", path, ErrProgramUnavailable)
	}
	arena, err := e.extract(path, e.cubeLayout)
	if err != nil {
		return e.fail("cubemap", path, err)
	}
	set, err := e.uploadCubemap("Cubemap", arena)
	if err != nil {
		return e.fail("cubemap", path, err)
	}

	e.mu.Lock()
	old := e.cubemap
	e.cubemap = set
	e.mu.Unlock()
	old.release()
	log.Printf("[Environment] cubemap %s loaded (%dpx faces, %s)", path, arena.Dim(), e.cubeLayout.Name)
	return nil
}

func (e *Environment) extract(path string, layout CubeLayout) (*FaceArena, error) {
	img, err := common.DecodeImageFile(path)
	if err != nil {
		return nil, err
	}
	return ExtractFaces(img, layout, e.pool)
}

// uploadCubemap creates the cube texture and its bind group. The arena is owned by the
// returned set, or released on failure.
func (e *Environment) uploadCubemap(label string, arena *FaceArena) (*cubemapSet, error) {
	texSlot, ok := e.composite.EnvironmentSlot(shader.AnnotationArgCubemap)
	if !ok {
		arena.Release()
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, shader.AnnotationArgCubemap)
	}
	samplerSlot, ok := e.composite.EnvironmentSlot(shader.AnnotationArgCubemapSampler)
	if !ok {
		arena.Release()
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, shader.AnnotationArgCubemapSampler)
	}

	set := &cubemapSet{arena: arena}
	tex, err := e.r.UploadTexture(renderer.TextureDescriptor{
		Label:  label,
		Width:  arena.Dim(),
		Height: arena.Dim(),
		Layers: uint32(CubeFaceCount),
		Format: wgpu.TextureFormatRGBA8Unorm,
		Cube:   true,
	}, arena.Faces())
	if err != nil {
		set.release()
		return nil, err
	}
	set.texture = tex

	set.provider = bind_group_provider.NewBindGroupProvider(label,
		bind_group_provider.WithTextureView(texSlot.Binding, tex.View()))
	if err := e.r.InitSampler(set.provider, samplerSlot.Binding, clampSampler); err != nil {
		set.release()
		return nil, err
	}
	if err := e.r.InitBindGroup(set.provider, e.composite.Layout(texSlot.Group), nil, nil); err != nil {
		set.release()
		return nil, err
	}
	return set, nil
}

func (e *Environment) fail(kind, path string, err error) error {
	err = fmt.Errorf("%s %s: %w", kind, path, err)
	log.Printf("[Environment] %v", err)
	return err
}

// SkyboxLoaded reports whether a skybox image has been loaded.
func (e *Environment) SkyboxLoaded() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.skybox != nil
}

// skyboxDraws returns the wall meshes and their face bind groups.
func (e *Environment) skyboxDraws() ([CubeFaceCount]bind_group_provider.BindGroupProvider, [CubeFaceCount]bind_group_provider.BindGroupProvider, error) {
	var none [CubeFaceCount]bind_group_provider.BindGroupProvider
	if e == nil {
		return none, none, ErrNoSkybox
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.skybox == nil {
		return e.walls, none, ErrNoSkybox
	}
	return e.walls, e.skybox.providers, nil
}

// cubemapProvider returns the bind group of the current cube map.
func (e *Environment) cubemapProvider() bind_group_provider.BindGroupProvider {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cubemap == nil {
		return nil
	}
	return e.cubemap.provider
}

// CubemapFaces returns the CPU copy of the current cube map faces, or nil.
func (e *Environment) CubemapFaces() *FaceArena {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cubemap == nil {
		return nil
	}
	return e.cubemap.arena
}

// Release frees every texture, bind group and face arena.
func (e *Environment) Release() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skybox.release()
	e.skybox = nil
	e.cubemap.release()
	e.cubemap = nil
	for f, w := range e.walls {
		if w != nil {
			w.Release()
			e.walls[f] = nil
		}
	}
}
