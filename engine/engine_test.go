package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-fluid/engine/particles"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []string
}

func (r *recorder) add(e string) { r.events = append(r.events, e) }

type fakeRenderer struct {
	renderer.Renderer
	rec      *recorder
	beginErr error
	resizes  int
}

func (r *fakeRenderer) BeginFrame() error {
	r.rec.add("begin")
	return r.beginErr
}
func (r *fakeRenderer) EndFrame() { r.rec.add("end") }
func (r *fakeRenderer) Present() { r.rec.add("present") }
func (r *fakeRenderer) Resize(width, height int) { r.resizes++ }

type fakeSource struct {
	particles.Source
	count uint32
}

func (s *fakeSource) Count() uint32 { return s.count }

type fakeScene struct {
	scene.Scene
	name    string
	active  bool
	r       renderer.Renderer
	src     particles.Source
	rec     *recorder
	drawErr error
	resized [2]int
}

func (s *fakeScene) Active() bool { return s.active }
func (s *fakeScene) Renderer() renderer.Renderer { return s.r }
func (s *fakeScene) Particles() particles.Source { return s.src }
func (s *fakeScene) PrepareCompute(float32) { s.rec.add("compute " + s.name) }
func (s *fakeScene) Resize(width, height int) { s.resized = [2]int{width, height} }
func (s *fakeScene) DrawCalls() error {
	s.rec.add("draw " + s.name)
	return s.drawErr
}

func TestRenderFrameOrdersScenesAndPhases(t *testing.T) {
	rec := &recorder{}
	r := &fakeRenderer{rec: rec}
	back := &fakeScene{name: "back", active: true, r: r, rec: rec, src: &fakeSource{count: 10}}
	front := &fakeScene{name: "front", active: true, r: r, rec: rec, src: &fakeSource{count: 5}}
	hidden := &fakeScene{name: "hidden", active: false, r: r, rec: rec}

	e := NewEngine(WithScene(2, front), WithScene(1, back), WithScene(0, hidden)).(*engine)
	n, err := e.renderFrame(0.016)
	require.NoError(t, err)
	assert.Equal(t, uint32(15), n)
	assert.Equal(t, []string{
		"compute back", "compute front",
		"begin", "draw back", "draw front", "end", "present",
	}, rec.events)
}

func TestRenderFrameJoinsSceneErrorsAndStillPresents(t *testing.T) {
	rec := &recorder{}
	r := &fakeRenderer{rec: rec}
	boom := errors.New("composite pass: missing attachment")
	s := &fakeScene{name: "fluid", active: true, r: r, rec: rec, drawErr: boom}

	e := NewEngine(WithScene(0, s)).(*engine)
	_, err := e.renderFrame(0.016)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, rec.events, "present")
}

func TestRenderFrameSkipsDrawWhenBeginFails(t *testing.T) {
	rec := &recorder{}
	r := &fakeRenderer{rec: rec, beginErr: errors.New("surface lost")}
	s := &fakeScene{name: "fluid", active: true, r: r, rec: rec}

	e := NewEngine(WithScene(0, s)).(*engine)
	_, err := e.renderFrame(0.016)
	assert.Error(t, err)
	assert.Equal(t, []string{"compute fluid", "begin"}, rec.events)
}

func TestRenderFrameWithoutActiveScenes(t *testing.T) {
	e := NewEngine().(*engine)
	n, err := e.renderFrame(0.016)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestResizeReachesEachRendererOnce(t *testing.T) {
	rec := &recorder{}
	r := &fakeRenderer{rec: rec}
	a := &fakeScene{name: "a", active: true, r: r, rec: rec}
	b := &fakeScene{name: "b", active: false, r: r, rec: rec}

	e := NewEngine(WithScene(0, a), WithScene(1, b)).(*engine)
	e.resize(800, 600)
	assert.Equal(t, 1, r.resizes)
	assert.Equal(t, [2]int{800, 600}, a.resized)
	assert.Equal(t, [2]int{800, 600}, b.resized)

	e.resize(0, 600)
	assert.Equal(t, 1, r.resizes)
}

func TestSceneRegistry(t *testing.T) {
	e := NewEngine()
	s := &fakeScene{name: "fluid"}
	e.AddScene(3, s)
	assert.Equal(t, s, e.Scene(3))

	cp := e.Scenes()
	delete(cp, 3)
	assert.NotNil(t, e.Scene(3))

	e.RemoveScene(3)
	assert.Nil(t, e.Scene(3))
}

func TestFrameLimit(t *testing.T) {
	assert.Zero(t, frameDuration(0))
	assert.Equal(t, 20*time.Millisecond, frameDuration(50))

	e := NewEngine(WithRenderFrameLimit(100)).(*engine)
	assert.Equal(t, 10*time.Millisecond, e.renderFrameLimit)
	e.SetRenderFrameLimit(-1)
	assert.Zero(t, e.renderFrameLimit)
}

func TestQuitIsIdempotent(t *testing.T) {
	e := NewEngine()
	e.Quit()
	assert.NotPanics(t, e.Quit)
}

func TestProfilerOptions(t *testing.T) {
	e := NewEngine(WithProfiling(true), WithProfilerInterval(250*time.Millisecond)).(*engine)
	assert.True(t, e.profilingEnabled)
	require.NotNil(t, e.profiler)

	e.DisableProfiler()
	assert.False(t, e.profilingEnabled)
	e.EnableProfiler()
	assert.True(t, e.profilingEnabled)
}
