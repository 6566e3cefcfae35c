package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cornerlink/internal/sim/linking"
)

func TestLoad_ConfigsBlocks(t *testing.T) {
	c, err := Load("../../../configs")
	require.NoError(t, err)

	require.Equal(t, "AIR", c.Blocks.Palette[0])
	require.Equal(t, uint16(0), c.Blocks.Index["AIR"])
	require.Equal(t, "NETHER_PORTAL", c.Blocks.PoiKind("NETHER_PORTAL"))
	require.Empty(t, c.Blocks.PoiKind("OBSIDIAN"))
	require.NotEmpty(t, c.Blocks.PaletteDigest)

	tag := c.Blocks.Tag("portal_linking")
	require.True(t, tag.IsLinkingMarker(linking.BlockState{Block: "GOLD_BLOCK"}))
	require.False(t, tag.IsLinkingMarker(linking.BlockState{Block: "IRON_BLOCK"}))
	require.False(t, tag.IsLinkingMarker(linking.BlockState{}))
}

func TestBlockCatalog_State(t *testing.T) {
	c, err := NewBlockCatalog([]BlockDef{
		{ID: "AIR"},
		{ID: "NETHER_PORTAL", Axis: true, Poi: "NETHER_PORTAL"},
		{ID: "OBSIDIAN", Solid: true},
	})
	require.NoError(t, err)

	st, err := c.State("NETHER_PORTAL", linking.AxisZ)
	require.NoError(t, err)
	require.Equal(t, linking.BlockState{Block: "NETHER_PORTAL", Axis: linking.AxisZ}, st)

	_, err = c.State("NETHER_PORTAL", linking.AxisNone)
	require.Error(t, err)
	_, err = c.State("OBSIDIAN", linking.AxisX)
	require.Error(t, err)
	_, err = c.State("GLASS", linking.AxisNone)
	require.Error(t, err)
}

func TestLoad_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"missing_air": `[{"id":"STONE"}]`,
		"empty_id":    `[{"id":"AIR"},{"id":""}]`,
		"duplicate":   `[{"id":"AIR"},{"id":"STONE"},{"id":"STONE"}]`,
		"bad_json":    `{`,
	} {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(body), 0o644))
		_, err := Load(dir)
		require.Error(t, err, name)
	}
}

func TestTag_Unknown(t *testing.T) {
	c, err := NewBlockCatalog([]BlockDef{{ID: "AIR"}})
	require.NoError(t, err)
	tag := c.Tag("portal_linking")
	require.Zero(t, tag.Len())
	require.False(t, tag.IsLinkingMarker(linking.BlockState{Block: "AIR"}))
}
