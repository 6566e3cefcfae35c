package store

import (
	"fmt"

	snapv1 "cornerlink/internal/persistence/snapshot"
	"cornerlink/internal/sim/linking"
)

// Export converts the store into a world snapshot.
func (s *ChunkStore) Export(worldID, kind string) snapv1.WorldV1 {
	out := snapv1.WorldV1{
		Header:    snapv1.Header{Version: snapv1.Version, WorldID: worldID, Kind: kind},
		BoundaryR: s.Bounds.BoundaryR,
		MinY:      s.Bounds.MinY,
		Height:    s.Bounds.Height,
	}
	for _, st := range s.palette {
		out.Palette = append(out.Palette, snapv1.StateV1{Block: st.Block, Axis: st.Axis.String()})
	}
	for _, k := range s.LoadedChunkKeys() {
		out.Chunks = append(out.Chunks, snapv1.ChunkV1{
			CX:     k.CX,
			CZ:     k.CZ,
			Height: s.Bounds.Height,
			Runs:   snapv1.EncodeRuns(s.Chunks[k].Blocks),
		})
	}
	return out
}

// Import rebuilds a chunk store from a world snapshot.
func Import(snap snapv1.WorldV1) (*ChunkStore, error) {
	if snap.Height <= 0 {
		return nil, fmt.Errorf("snapshot height must be > 0, got %d", snap.Height)
	}
	s := NewChunkStore(Bounds{BoundaryR: snap.BoundaryR, MinY: snap.MinY, Height: snap.Height})
	if len(snap.Palette) == 0 || snap.Palette[0] != (snapv1.StateV1{}) {
		return nil, fmt.Errorf("snapshot palette must start with the empty state")
	}
	for i, p := range snap.Palette[1:] {
		axis, err := linking.ParseAxis(p.Axis)
		if err != nil {
			return nil, fmt.Errorf("snapshot palette[%d]: %w", i+1, err)
		}
		st := linking.BlockState{Block: p.Block, Axis: axis}
		if _, dup := s.index[st]; dup || st.IsZero() {
			return nil, fmt.Errorf("snapshot palette[%d]: duplicate state %s", i+1, st)
		}
		s.index[st] = uint16(len(s.palette))
		s.palette = append(s.palette, st)
	}

	size := ChunkSize * ChunkSize * snap.Height
	for _, ch := range snap.Chunks {
		if ch.Height != snap.Height {
			return nil, fmt.Errorf("snapshot chunk height mismatch: got %d want %d", ch.Height, snap.Height)
		}
		blocks, err := snapv1.DecodeRuns(ch.Runs, size)
		if err != nil {
			return nil, fmt.Errorf("snapshot chunk %d,%d: %w", ch.CX, ch.CZ, err)
		}
		for _, id := range blocks {
			if int(id) >= len(s.palette) {
				return nil, fmt.Errorf("snapshot chunk %d,%d: palette id %d out of range", ch.CX, ch.CZ, id)
			}
		}
		s.Chunks[ChunkKey{CX: ch.CX, CZ: ch.CZ}] = &Chunk{CX: ch.CX, CZ: ch.CZ, Blocks: blocks}
	}
	return s, nil
}
