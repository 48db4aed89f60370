package spatial

import "github.com/golang/geo/r3"

// DebugInfo describes the content of a partition for diagnostics.
type DebugInfo struct {
	ChunkSize   float64          `json:"chunk_size"`
	ChunkCount  int              `json:"chunk_count"`
	ObjectCount int              `json:"object_count"`
	SkipCount   int              `json:"skip_count"`
	Generation  uint64           `json:"generation"`
	Pending     bool             `json:"pending"`
	MinChunk    ChunkKey         `json:"min_chunk"`
	MaxChunk    ChunkKey         `json:"max_chunk"`
	Occupancy   map[ChunkKey]int `json:"occupancy"`
}

// Partition is the read side of a spatial index, as needed by visibility
// evaluation.
type Partition interface {
	ChunkSize() float64
	HasChunk(k ChunkKey) bool
	ChunksNear(origin ChunkKey, radius int) []ChunkKey
	BoundingVolume(id string) (Sphere, bool)
	Locate(id string) (key ChunkKey, rank int, ok bool)
	Position(id string) (r3.Vector, bool)

	// debug stuff:
	DebugInfo() DebugInfo
}
