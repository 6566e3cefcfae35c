package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cornerlink/internal/sim/linking"
)

type Catalogs struct {
	Blocks BlockCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string

	tags map[string]map[string]bool
}

type BlockDef struct {
	ID    string   `json:"id"`
	Solid bool     `json:"solid"`
	Axis  bool     `json:"axis,omitempty"` // has a horizontal-axis property
	Poi   string   `json:"poi,omitempty"`  // poi kind registered for every cell of this block
	Tags  []string `json:"tags,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	if err := out.build(defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.DefsDigest = sha256Hex(raw)
	return nil
}

// NewBlockCatalog builds a catalog from in-memory definitions.
func NewBlockCatalog(defs []BlockDef) (BlockCatalog, error) {
	var c BlockCatalog
	if err := c.build(defs); err != nil {
		return BlockCatalog{}, err
	}
	raw, _ := json.Marshal(defs)
	c.DefsDigest = sha256Hex(raw)
	return c, nil
}

func (c *BlockCatalog) build(defs []BlockDef) error {
	c.Defs = map[string]BlockDef{}
	c.tags = map[string]map[string]bool{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("empty id")
		}
		if _, dup := c.Defs[d.ID]; dup {
			return fmt.Errorf("duplicate id %s", d.ID)
		}
		c.Defs[d.ID] = d
		for _, t := range d.Tags {
			if c.tags[t] == nil {
				c.tags[t] = map[string]bool{}
			}
			c.tags[t][d.ID] = true
		}
	}

	// Ensure AIR exists and is palette id 0.
	if _, ok := c.Defs["AIR"]; !ok {
		return fmt.Errorf("missing AIR")
	}
	ids := make([]string, 0, len(c.Defs))
	for id := range c.Defs {
		if id != "AIR" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	ids = append([]string{"AIR"}, ids...)

	c.Palette = ids
	c.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		c.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	c.PaletteDigest = sha256Hex(palJSON)
	return nil
}

// State returns the block state for id, rejecting an axis the block does not carry.
func (c BlockCatalog) State(id string, axis linking.Axis) (linking.BlockState, error) {
	d, ok := c.Defs[id]
	if !ok {
		return linking.BlockState{}, fmt.Errorf("unknown block %q", id)
	}
	if d.Axis && axis == linking.AxisNone {
		return linking.BlockState{}, fmt.Errorf("block %s needs an axis", id)
	}
	if !d.Axis && axis != linking.AxisNone {
		return linking.BlockState{}, fmt.Errorf("block %s has no axis property", id)
	}
	return linking.BlockState{Block: id, Axis: axis}, nil
}

// PoiKind returns the poi kind cells of this block register, if any.
func (c BlockCatalog) PoiKind(id string) string {
	return c.Defs[id].Poi
}

// Tag returns the set of blocks carrying tag.
func (c BlockCatalog) Tag(tag string) TagSet {
	return TagSet{name: tag, blocks: c.tags[tag]}
}

// TagSet is a block tag usable as a marker set.
type TagSet struct {
	name   string
	blocks map[string]bool
}

func (t TagSet) Name() string { return t.name }

func (t TagSet) Len() int { return len(t.blocks) }

func (t TagSet) Contains(id string) bool { return t.blocks[id] }

func (t TagSet) IsLinkingMarker(s linking.BlockState) bool { return t.blocks[s.Block] }
