package store

import (
	"errors"

	"cornerlink/internal/sim/linking"
)

const ChunkSize = 16

var ErrOutOfBounds = errors.New("position out of bounds")

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk is one 16x16 column of the full world height.
type Chunk struct {
	CX, CZ int
	Blocks []uint16 // len = 16*16*height, state palette ids
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	c.Blocks[c.index(x, y, z)] = b
}

type Bounds struct {
	BoundaryR int // blocks, square border around the origin
	MinY      int
	Height    int
}

// ChunkStore holds sparse chunks. Cells of chunks that were never written
// read as the zero state, the same as air.
type ChunkStore struct {
	Bounds Bounds
	Chunks map[ChunkKey]*Chunk

	palette []linking.BlockState
	index   map[linking.BlockState]uint16
}

func NewChunkStore(b Bounds) *ChunkStore {
	return &ChunkStore{
		Bounds:  b,
		Chunks:  map[ChunkKey]*Chunk{},
		palette: []linking.BlockState{{}},
		index:   map[linking.BlockState]uint16{{}: 0},
	}
}

// Palette returns the interned states; id 0 is always the zero state.
func (s *ChunkStore) Palette() []linking.BlockState {
	out := make([]linking.BlockState, len(s.palette))
	copy(out, s.palette)
	return out
}

func (s *ChunkStore) stateID(st linking.BlockState) uint16 {
	if st.Block == "AIR" {
		st = linking.BlockState{}
	}
	if id, ok := s.index[st]; ok {
		return id
	}
	id := uint16(len(s.palette))
	s.palette = append(s.palette, st)
	s.index[st] = id
	return id
}
