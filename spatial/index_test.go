package spatial

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/galacticai-space/galactic/models"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func TestIndexCreation(t *testing.T) {
	idx := NewIndex(IndexOptions{})
	require.Equal(t, float64(DefaultChunkSize), idx.ChunkSize())
	require.Equal(t, DefaultBatchSize, idx.batchSize)
	require.False(t, idx.Ready())
	require.False(t, idx.Pending())
	require.Empty(t, idx.ChunksNear(ChunkKey{}, 3))
}

func TestIndexAssignEmpty(t *testing.T) {
	idx := NewIndex(IndexOptions{})
	idx.Assign(nil)
	require.True(t, idx.Advance())

	require.True(t, idx.Ready())
	require.Zero(t, idx.ChunkCount())
	require.Empty(t, idx.ChunksNear(ChunkKey{}, 2))
}

func TestIndexAssignInBatches(t *testing.T) {
	idx := NewIndex(IndexOptions{ChunkSize: 10, BatchSize: 2})
	idx.Assign([]models.Object{
		{ID: "a", Position: r3.Vector{X: 1, Y: 1, Z: 1}, Weight: 1},
		{ID: "b", Position: r3.Vector{X: 2, Y: 2, Z: 2}, Weight: 9},
		{ID: "c", Position: r3.Vector{X: 15, Y: 1, Z: 1}, Weight: 4},
	})

	require.False(t, idx.Advance())
	require.False(t, idx.Ready())
	require.True(t, idx.Pending())

	require.True(t, idx.Advance())
	require.True(t, idx.Ready())
	require.False(t, idx.Pending())
	require.Equal(t, 2, idx.ChunkCount())
	require.Equal(t, 3, idx.ObjectCount())

	require.Equal(t, []string{"b", "a"}, idx.Members(ChunkKey{}))

	key, rank, ok := idx.Locate("a")
	require.True(t, ok)
	require.Equal(t, ChunkKey{}, key)
	require.Equal(t, 1, rank)

	sphere, ok := idx.BoundingVolume("b")
	require.True(t, ok)
	require.Equal(t, 6.0, sphere.Radius)
}

func TestIndexSupersedingAssignmentRestarts(t *testing.T) {
	idx := NewIndex(IndexOptions{ChunkSize: 10, BatchSize: 1})
	idx.Assign([]models.Object{
		{ID: "old-1", Position: r3.Vector{X: 1}},
		{ID: "old-2", Position: r3.Vector{X: 2}},
	})
	idx.Flush()
	require.Equal(t, []string{"old-1", "old-2"}, idx.Members(ChunkKey{}))

	idx.Assign([]models.Object{
		{ID: "stale-1", Position: r3.Vector{X: 100}},
		{ID: "stale-2", Position: r3.Vector{X: 100}},
	})
	require.False(t, idx.Advance())

	// previous snapshot is still served while a pass is in progress
	require.True(t, idx.HasChunk(ChunkKey{}))
	require.False(t, idx.HasChunk(ChunkKey{X: 10}))

	idx.Assign([]models.Object{
		{ID: "new", Position: r3.Vector{X: 25}},
	})
	idx.Flush()

	require.Equal(t, 1, idx.ObjectCount())
	require.True(t, idx.HasChunk(ChunkKey{X: 2}))
	require.False(t, idx.HasChunk(ChunkKey{X: 10}))
	require.False(t, idx.HasChunk(ChunkKey{}))
}

func TestIndexSkipsMalformedObjects(t *testing.T) {
	idx := NewIndex(IndexOptions{ChunkSize: 10})
	idx.Assign([]models.Object{
		{ID: "nan", Position: r3.Vector{X: math.NaN()}},
		{ID: "", Position: r3.Vector{X: 1}},
		{ID: "inf", Position: r3.Vector{Z: math.Inf(-1)}},
		{ID: "ok", Position: r3.Vector{X: 1}},
	})
	idx.Flush()

	require.Equal(t, 1, idx.ObjectCount())
	require.Equal(t, 3, idx.DebugInfo().SkipCount)
	require.Equal(t, []string{"ok"}, idx.Members(ChunkKey{}))
}

func TestIndexSkipsObjectsBeyondChunkRange(t *testing.T) {
	idx := NewIndex(IndexOptions{ChunkSize: 250})
	idx.Assign([]models.Object{
		{ID: "far", Position: r3.Vector{X: 1e25}},
		{ID: "below", Position: r3.Vector{Y: -250 * (MaxChunkCoordinate + 2)}},
		{ID: "edge", Position: r3.Vector{Z: 250 * MaxChunkCoordinate}},
		{ID: "near", Position: r3.Vector{X: 1}},
	})
	idx.Flush()

	require.Equal(t, 2, idx.ObjectCount())
	require.Equal(t, 2, idx.DebugInfo().SkipCount)

	_, _, ok := idx.Locate("far")
	require.False(t, ok)
	require.Equal(t, []ChunkKey{{}}, idx.ChunksNear(ChunkKey{}, 2))

	key, _, ok := idx.Locate("edge")
	require.True(t, ok)
	require.Equal(t, ChunkKey{Z: MaxChunkCoordinate}, key)
}

func TestIndexChunksNear(t *testing.T) {
	idx := NewIndex(IndexOptions{ChunkSize: 1})

	var objects []models.Object
	for x := -3; x <= 3; x++ {
		for y := -3; y <= 3; y++ {
			for z := -3; z <= 3; z++ {
				objects = append(objects, models.Object{
					ID:       ChunkKey{X: x, Y: y, Z: z}.String(),
					Position: r3.Vector{X: float64(x) + 0.5, Y: float64(y) + 0.5, Z: float64(z) + 0.5},
				})
			}
		}
	}
	idx.Assign(objects)
	idx.Flush()

	t.Run("radius zero returns the origin", func(t *testing.T) {
		require.Equal(t, []ChunkKey{{1, 1, 1}}, idx.ChunksNear(ChunkKey{1, 1, 1}, 0))
	})

	t.Run("radius one returns the axis neighbors", func(t *testing.T) {
		keys := idx.ChunksNear(ChunkKey{}, 1)
		SortChunkKeys(keys)
		require.Len(t, keys, 7)
	})

	t.Run("results are pruned to a sphere", func(t *testing.T) {
		origin := ChunkKey{}
		for _, k := range idx.ChunksNear(origin, 2) {
			require.LessOrEqual(t, k.DistanceSquared(origin), 4)
		}
	})

	t.Run("sparse scan and cube scan agree", func(t *testing.T) {
		cube := idx.ChunksNear(ChunkKey{}, 1)
		SortChunkKeys(cube)

		sparse := idx.ChunksNear(ChunkKey{}, 100)
		var within []ChunkKey
		for _, k := range sparse {
			if k.DistanceSquared(ChunkKey{}) <= 1 {
				within = append(within, k)
			}
		}
		require.Equal(t, cube, within)
	})

	t.Run("negative radius", func(t *testing.T) {
		require.Empty(t, idx.ChunksNear(ChunkKey{}, -1))
	})
}

func TestIndexAssignedObjectIsInContainingChunk(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 20; i++ {
		chunkSize := 1 + r.Float64()*300
		idx := NewIndex(IndexOptions{ChunkSize: chunkSize, BatchSize: 1 + r.Intn(64)})

		objects := make([]models.Object, 200)
		for j := range objects {
			objects[j] = models.Object{
				ID: strconv.Itoa(j),
				Position: r3.Vector{
					X: (r.Float64() - 0.5) * 5000,
					Y: (r.Float64() - 0.5) * 5000,
					Z: (r.Float64() - 0.5) * 5000,
				},
				Weight: r.Float64() * 100,
			}
		}
		idx.Assign(objects)
		idx.Flush()

		for _, o := range objects {
			key := ChunkKeyOf(o.Position, chunkSize)
			near := idx.ChunksNear(key, 0)
			require.Equal(t, []ChunkKey{key}, near)
			require.Contains(t, idx.Members(near[0]), o.ID)
		}
	}
}

func TestIndexDebugInfo(t *testing.T) {
	idx := NewIndex(IndexOptions{ChunkSize: 10})
	require.Empty(t, idx.DebugInfo().Occupancy)

	idx.Assign([]models.Object{
		{ID: "a", Position: r3.Vector{X: -15}},
		{ID: "b", Position: r3.Vector{Y: 25}},
		{ID: "c", Position: r3.Vector{Y: 26}},
	})
	idx.Flush()

	info := idx.DebugInfo()
	require.Equal(t, 2, info.ChunkCount)
	require.Equal(t, 3, info.ObjectCount)
	require.Equal(t, uint64(1), info.Generation)
	require.Equal(t, ChunkKey{X: -2, Y: 0, Z: 0}, info.MinChunk)
	require.Equal(t, ChunkKey{X: 0, Y: 2, Z: 0}, info.MaxChunk)
	require.Equal(t, 2, info.Occupancy[ChunkKey{Y: 2}])
}
