package store

// split returns the chunk coordinate holding v and v's offset inside it.
func split(v int) (chunk, local int) {
	chunk = v / ChunkSize
	local = v % ChunkSize
	if local < 0 {
		chunk--
		local += ChunkSize
	}
	return chunk, local
}
