package particles

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/bind_group_provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer records vertex buffer creation and writes. Any other call panics.
type fakeRenderer struct {
	renderer.Renderer
	sizes  map[int]uint64
	writes [][]bind_group_provider.BufferWrite
}

func (r *fakeRenderer) InitVertexBuffers(_ bind_group_provider.BindGroupProvider, sizes map[int]uint64) error {
	r.sizes = sizes
	return nil
}

func (r *fakeRenderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	cp := make([]bind_group_provider.BufferWrite, len(writes))
	for i, w := range writes {
		w.Data = append([]byte(nil), w.Data...)
		cp[i] = w
	}
	r.writes = append(r.writes, cp)
}

func (r *fakeRenderer) last() []bind_group_provider.BufferWrite {
	return r.writes[len(r.writes)-1]
}

func vec4(data []byte, i int) [4]float32 {
	var v [4]float32
	for c := range 4 {
		v[c] = math.Float32frombits(binary.LittleEndian.Uint32(data[(i*4+c)*4:]))
	}
	return v
}

func newTestSource(t *testing.T, options ...SourceBuilderOption) (Source, *fakeRenderer) {
	t.Helper()
	pool := worker.NewDynamicWorkerPool(2, 16, time.Second)
	t.Cleanup(pool.Stop)
	r := &fakeRenderer{}
	options = append([]SourceBuilderOption{WithWorkerPool(pool), WithChunkSize(7)}, options...)
	s, err := NewDamSource(r, options...)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s, r
}

func TestBlockDims(t *testing.T) {
	assert.Equal(t, [3]int{}, blockDims(0))
	d := blockDims(1000)
	assert.GreaterOrEqual(t, d[0]*d[1]*d[2], 1000)
	assert.Greater(t, d[2], d[0])
	assert.Equal(t, [3]int{1, 1, 1}, blockDims(1))
}

func TestNewDamSourceUploadsInitialState(t *testing.T) {
	s, r := newTestSource(t, WithCount(50))
	assert.Equal(t, uint32(50), s.Count())
	assert.Equal(t, map[int]uint64{positionSlot: 50 * 16, colorSlot: 50 * 16}, r.sizes)
	require.Len(t, r.writes, 1)

	writes := r.last()
	require.Len(t, writes, 2)
	assert.Equal(t, positionSlot, writes[0].Binding)
	assert.Equal(t, colorSlot, writes[1].Binding)
	assert.Len(t, writes[0].Data, 50*16)
	assert.Len(t, writes[1].Data, 50*16)
	for i := range 50 {
		assert.Equal(t, float32(1), vec4(writes[0].Data, i)[3])
		assert.Equal(t, float32(1), vec4(writes[1].Data, i)[3])
	}
	assert.Equal(t, uint32(50), s.Stream().Count)
}

func TestParticlesAreDistinctAtRest(t *testing.T) {
	_, r := newTestSource(t, WithCount(27))
	data := r.last()[0].Data
	seen := make(map[[4]float32]bool)
	for i := range 27 {
		p := vec4(data, i)
		assert.False(t, seen[p], "particle %d duplicates a position", i)
		seen[p] = true
	}
}

func TestTickIsDeterministic(t *testing.T) {
	a, ra := newTestSource(t, WithCount(40))
	b, rb := newTestSource(t, WithCount(40), WithChunkSize(3))
	for range 5 {
		require.NoError(t, a.Tick(0.1))
		require.NoError(t, b.Tick(0.1))
	}
	assert.InDelta(t, 0.5, a.Time(), 1e-5)
	assert.Equal(t, ra.last(), rb.last())
	assert.NotEqual(t, ra.writes[0][0].Data, ra.last()[0].Data)
}

func TestSloshMovesBlockSideways(t *testing.T) {
	still, rs := newTestSource(t, WithCount(40), WithSlosh(0, 2))
	moving, rm := newTestSource(t, WithCount(40), WithSlosh(6, 2))
	require.NoError(t, still.Tick(0.3))
	require.NoError(t, moving.Tick(0.3))

	rest, swayed := rs.writes[0][0].Data, rs.last()[0].Data
	shifted := 0
	for i := range 40 {
		assert.Equal(t, vec4(rest, i)[0], vec4(swayed, i)[0], "particle %d moved sideways", i)
		if vec4(rm.last()[0].Data, i)[0] != vec4(rest, i)[0] {
			shifted++
		}
	}
	assert.Positive(t, shifted)
}

func TestPauseAndReset(t *testing.T) {
	s, r := newTestSource(t, WithCount(10))
	require.NoError(t, s.Tick(0.5))
	initial := r.writes[0]

	assert.True(t, s.TogglePause())
	require.NoError(t, s.Tick(0.5))
	assert.Len(t, r.writes, 2)
	assert.InDelta(t, 0.5, s.Time(), 1e-6)

	s.Reset()
	require.NoError(t, s.Tick(0.5))
	require.Len(t, r.writes, 3)
	assert.Equal(t, initial, r.last())
	assert.Zero(t, s.Time())
	assert.True(t, s.Paused())

	s.SetPaused(false)
	require.NoError(t, s.Tick(0.25))
	assert.InDelta(t, 0.25, s.Time(), 1e-6)
}

func TestEmptySource(t *testing.T) {
	s, r := newTestSource(t, WithCount(0))
	assert.Nil(t, r.sizes)
	assert.Empty(t, r.writes)
	require.NoError(t, s.Tick(1))
	assert.Zero(t, s.Stream().Count)
}

func TestReleasedSource(t *testing.T) {
	s, _ := newTestSource(t, WithCount(4))
	s.Release()
	assert.ErrorIs(t, s.Tick(1), ErrSourceReleased)
	assert.Zero(t, s.Stream().Count)
	s.Release()
}

func TestNegativeCountIsRejected(t *testing.T) {
	_, err := NewDamSource(&fakeRenderer{}, WithCount(-1))
	assert.Error(t, err)
}
