package store

import (
	"fmt"
	"math"
	"sort"

	"cornerlink/internal/sim/linking"
)

func (s *ChunkStore) InBounds(x, y, z int) bool {
	if y < s.Bounds.MinY || y >= s.Bounds.MinY+s.Bounds.Height {
		return false
	}
	return s.withinBorder(x, z)
}

func (s *ChunkStore) withinBorder(x, z int) bool {
	r := s.Bounds.BoundaryR
	if r > 0 {
		if x < -r || x > r || z < -r || z > r {
			return false
		}
	}
	return true
}

// IsWithin checks the horizontal border only.
func (s *ChunkStore) IsWithin(p linking.Pos) bool {
	return s.withinBorder(p.X, p.Z)
}

// Clamp pulls x and z inside the border and returns the containing cell.
func (s *ChunkStore) Clamp(x, y, z float64) linking.Pos {
	if r := float64(s.Bounds.BoundaryR); r > 0 {
		x = math.Max(-r, math.Min(r, x))
		z = math.Max(-r, math.Min(r, z))
	}
	return linking.Pos{X: int(math.Floor(x)), Y: int(math.Floor(y)), Z: int(math.Floor(z))}
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) BlockState(p linking.Pos) linking.BlockState {
	if !s.InBounds(p.X, p.Y, p.Z) {
		return linking.BlockState{}
	}
	cx, lx := split(p.X)
	cz, lz := split(p.Z)
	ch := s.Chunks[ChunkKey{CX: cx, CZ: cz}]
	if ch == nil {
		return linking.BlockState{}
	}
	return s.palette[ch.Get(lx, p.Y-s.Bounds.MinY, lz)]
}

// SetBlock writes st at p and returns the state it replaced.
func (s *ChunkStore) SetBlock(p linking.Pos, st linking.BlockState) (linking.BlockState, error) {
	if !s.InBounds(p.X, p.Y, p.Z) {
		return linking.BlockState{}, fmt.Errorf("set %s: %w", p, ErrOutOfBounds)
	}
	prev := s.BlockState(p)
	cx, lx := split(p.X)
	cz, lz := split(p.Z)
	ch := s.getOrCreateChunk(cx, cz)
	ch.Set(lx, p.Y-s.Bounds.MinY, lz, s.stateID(st))
	return prev, nil
}

func (s *ChunkStore) getOrCreateChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.Chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Blocks: make([]uint16, ChunkSize*ChunkSize*s.Bounds.Height),
	}
	s.Chunks[k] = ch
	return ch
}

// Each calls fn for every non-zero cell of the loaded chunks, in chunk key order.
func (s *ChunkStore) Each(fn func(p linking.Pos, st linking.BlockState)) {
	for _, k := range s.LoadedChunkKeys() {
		ch := s.Chunks[k]
		for i, id := range ch.Blocks {
			if id == 0 {
				continue
			}
			x := i % ChunkSize
			z := (i / ChunkSize) % ChunkSize
			y := i / (ChunkSize * ChunkSize)
			fn(linking.Pos{X: k.CX*ChunkSize + x, Y: y + s.Bounds.MinY, Z: k.CZ*ChunkSize + z}, s.palette[id])
		}
	}
}
