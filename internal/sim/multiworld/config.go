package multiworld

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"cornerlink/internal/sim/linking"
	"cornerlink/internal/sim/terrain/store"
)

type Config struct {
	DefaultWorldID string      `yaml:"default_world_id"`
	Linking        LinkingSpec `yaml:"linking"`
	Worlds         []WorldSpec `yaml:"worlds"`
}

// LinkingSpec configures portal linking for every trip touching WorldType.
type LinkingSpec struct {
	WorldType               string `yaml:"world_type"`
	AnchorPoi               string `yaml:"anchor_poi"`
	MarkerTag               string `yaml:"marker_tag"`
	MaxSpan                 int    `yaml:"max_span"`
	SearchRadius            int    `yaml:"search_radius"`
	SearchRadiusIntoLinking int    `yaml:"search_radius_into_linking"`
}

type WorldSpec struct {
	ID              string  `yaml:"id"`
	Type            string  `yaml:"type"`
	BoundaryR       int     `yaml:"boundary_r"`
	CoordinateScale float64 `yaml:"coordinate_scale"`
	MinY            int     `yaml:"min_y"`
	Height          int     `yaml:"height"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	// Worlds listed in the file replace the defaults wholesale.
	cfg.Worlds = nil
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	def := linking.DefaultConfig()
	return Config{
		DefaultWorldID: "OVERWORLD",
		Linking: LinkingSpec{
			WorldType:               def.LinkingWorldKind,
			AnchorPoi:               def.AnchorKind,
			MarkerTag:               "portal_linking",
			MaxSpan:                 def.Span,
			SearchRadius:            def.SearchRadius,
			SearchRadiusIntoLinking: def.SearchRadiusIntoLinking,
		},
		Worlds: []WorldSpec{
			{ID: "OVERWORLD", Type: "OVERWORLD", BoundaryR: 4000, CoordinateScale: 1, Height: 128},
			{ID: "NETHER", Type: "NETHER", BoundaryR: 500, CoordinateScale: 8, Height: 128},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Worlds {
		c.Worlds[i].ID = strings.TrimSpace(c.Worlds[i].ID)
		if strings.TrimSpace(c.Worlds[i].Type) == "" {
			c.Worlds[i].Type = c.Worlds[i].ID
		}
		if c.Worlds[i].CoordinateScale == 0 {
			c.Worlds[i].CoordinateScale = 1
		}
	}
	if strings.TrimSpace(c.DefaultWorldID) == "" && len(c.Worlds) > 0 {
		c.DefaultWorldID = c.Worlds[0].ID
	}
	def := linking.DefaultConfig()
	if c.Linking.WorldType == "" {
		c.Linking.WorldType = def.LinkingWorldKind
	}
	if c.Linking.AnchorPoi == "" {
		c.Linking.AnchorPoi = def.AnchorKind
	}
	if c.Linking.MarkerTag == "" {
		c.Linking.MarkerTag = "portal_linking"
	}
	if c.Linking.MaxSpan == 0 {
		c.Linking.MaxSpan = def.Span
	}
	if c.Linking.SearchRadius == 0 {
		c.Linking.SearchRadius = def.SearchRadius
	}
	if c.Linking.SearchRadiusIntoLinking == 0 {
		c.Linking.SearchRadiusIntoLinking = def.SearchRadiusIntoLinking
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Worlds) == 0 {
		return fmt.Errorf("worlds must not be empty")
	}
	seen := map[string]bool{}
	for _, w := range c.Worlds {
		if w.ID == "" {
			return fmt.Errorf("world id must not be empty")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate world id: %s", w.ID)
		}
		seen[w.ID] = true
		if w.BoundaryR <= 0 {
			return fmt.Errorf("world %s boundary_r must be > 0", w.ID)
		}
		if w.CoordinateScale <= 0 {
			return fmt.Errorf("world %s coordinate_scale must be > 0", w.ID)
		}
		if w.Height <= 0 {
			return fmt.Errorf("world %s height must be > 0", w.ID)
		}
	}
	if !seen[c.DefaultWorldID] {
		return fmt.Errorf("default_world_id %q not found in worlds", c.DefaultWorldID)
	}
	l := c.Linking
	if l.MaxSpan < 1 || l.MaxSpan > 64 {
		return fmt.Errorf("linking max_span must be in [1, 64], got %d", l.MaxSpan)
	}
	if l.SearchRadius <= 0 || l.SearchRadiusIntoLinking <= 0 {
		return fmt.Errorf("linking search radii must be > 0")
	}
	return nil
}

// LinkingConfig returns the linker settings described by the linking block.
func (c Config) LinkingConfig() linking.Config {
	return linking.Config{
		LinkingWorldKind:        c.Linking.WorldType,
		AnchorKind:              c.Linking.AnchorPoi,
		Span:                    c.Linking.MaxSpan,
		SearchRadius:            c.Linking.SearchRadius,
		SearchRadiusIntoLinking: c.Linking.SearchRadiusIntoLinking,
	}
}

func (c Config) WorldIDs() []string {
	out := make([]string, 0, len(c.Worlds))
	for _, w := range c.Worlds {
		out = append(out, w.ID)
	}
	sort.Strings(out)
	return out
}

func (c Config) WorldSpecByID(id string) (WorldSpec, bool) {
	for _, w := range c.Worlds {
		if w.ID == id {
			return w, true
		}
	}
	return WorldSpec{}, false
}

func (w WorldSpec) Bounds() store.Bounds {
	return store.Bounds{BoundaryR: w.BoundaryR, MinY: w.MinY, Height: w.Height}
}
