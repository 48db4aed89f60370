package spatial

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/golang/geo/r3"
)

// DefaultChunkSize is the edge length of a chunk in world units.
const DefaultChunkSize = 250

// ChunkKey identifies a grid cell by its integer coordinates.
type ChunkKey struct {
	X int
	Y int
	Z int
}

// MaxChunkCoordinate bounds the absolute chunk coordinate of an indexable
// position. Squared distances between two keys within the bound fit in an
// int64.
const MaxChunkCoordinate = 1 << 29

// InChunkRange reports whether every chunk coordinate of p is within
// MaxChunkCoordinate.
func InChunkRange(p r3.Vector, chunkSize float64) bool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return math.Abs(p.X/chunkSize) <= MaxChunkCoordinate &&
		math.Abs(p.Y/chunkSize) <= MaxChunkCoordinate &&
		math.Abs(p.Z/chunkSize) <= MaxChunkCoordinate
}

// ChunkKeyOf returns the key of the chunk that contains p.
func ChunkKeyOf(p r3.Vector, chunkSize float64) ChunkKey {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return ChunkKey{
		X: int(math.Floor(p.X / chunkSize)),
		Y: int(math.Floor(p.Y / chunkSize)),
		Z: int(math.Floor(p.Z / chunkSize)),
	}
}

func ParseChunkKey(s string) (ChunkKey, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return ChunkKey{}, errors.New("invalid chunk key").
			WithTag("chunk_key", s)
	}

	var coords [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return ChunkKey{}, errors.New("invalid chunk key coordinate").
				WithTag("chunk_key", s).
				Wrap(err)
		}
		coords[i] = v
	}

	return ChunkKey{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

func (k ChunkKey) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(k.X))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(k.Y))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(k.Z))
	return b.String()
}

func (k ChunkKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ChunkKey) UnmarshalText(b []byte) error {
	v, err := ParseChunkKey(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (k ChunkKey) Offset(dx, dy, dz int) ChunkKey {
	return ChunkKey{X: k.X + dx, Y: k.Y + dy, Z: k.Z + dz}
}

// DistanceSquared returns the squared Euclidean distance between two chunk
// keys, in chunks.
func (k ChunkKey) DistanceSquared(o ChunkKey) int {
	dx := k.X - o.X
	dy := k.Y - o.Y
	dz := k.Z - o.Z
	return dx*dx + dy*dy + dz*dz
}

// Center returns the world-space center of the chunk.
func (k ChunkKey) Center(chunkSize float64) r3.Vector {
	return r3.Vector{
		X: (float64(k.X) + 0.5) * chunkSize,
		Y: (float64(k.Y) + 0.5) * chunkSize,
		Z: (float64(k.Z) + 0.5) * chunkSize,
	}
}

// BoundingSphere returns the sphere circumscribing the chunk cube.
func (k ChunkKey) BoundingSphere(chunkSize float64) Sphere {
	return Sphere{
		Center: k.Center(chunkSize),
		Radius: chunkSize * math.Sqrt(3) / 2,
	}
}

func (k ChunkKey) less(o ChunkKey) bool {
	if k.X != o.X {
		return k.X < o.X
	}
	if k.Y != o.Y {
		return k.Y < o.Y
	}
	return k.Z < o.Z
}

// SortChunkKeys sorts keys by x, then y, then z.
func SortChunkKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].less(keys[j])
	})
}
