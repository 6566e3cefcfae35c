package multiworld

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	snapv1 "cornerlink/internal/persistence/snapshot"
	"cornerlink/internal/sim/catalogs"
	"cornerlink/internal/sim/linking"
	"cornerlink/internal/sim/poi"
	"cornerlink/internal/sim/terrain/store"
)

var ErrUnknownWorld = errors.New("unknown world")

// Runtime is one loaded world. It implements linking.Dimension.
type Runtime struct {
	Spec WorldSpec

	mu     sync.RWMutex
	blocks *catalogs.BlockCatalog
	store  *store.ChunkStore
	pois   *poi.Index
}

func newRuntime(spec WorldSpec, blocks *catalogs.BlockCatalog) *Runtime {
	return &Runtime{
		Spec:   spec,
		blocks: blocks,
		store:  store.NewChunkStore(spec.Bounds()),
		pois:   poi.New(spec.BoundaryR),
	}
}

func (rt *Runtime) Kind() string { return rt.Spec.Type }

func (rt *Runtime) CoordinateScale() float64 { return rt.Spec.CoordinateScale }

func (rt *Runtime) BlockState(p linking.Pos) linking.BlockState {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.store.BlockState(p)
}

func (rt *Runtime) IsWithin(p linking.Pos) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.store.IsWithin(p)
}

func (rt *Runtime) Clamp(x, y, z float64) linking.Pos {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.store.Clamp(x, y, z)
}

func (rt *Runtime) QueryInRadius(center linking.Pos, radius int, match func(kind string) bool) []linking.Pos {
	return rt.poiIndex().QueryInRadius(center, radius, match)
}

// PoiCount returns the number of indexed poi cells.
func (rt *Runtime) PoiCount() int { return rt.poiIndex().Len() }

// poiIndex returns the current index; Import swaps it under rt.mu.
func (rt *Runtime) poiIndex() *poi.Index {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.pois
}

// SetBlock writes st at p and keeps the poi index in step with the
// catalog's poi kinds. Unknown blocks are rejected.
func (rt *Runtime) SetBlock(p linking.Pos, st linking.BlockState) error {
	if !st.IsZero() {
		if _, err := rt.blocks.State(st.Block, st.Axis); err != nil {
			return fmt.Errorf("world %s: %w", rt.Spec.ID, err)
		}
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	prev, err := rt.store.SetBlock(p, st)
	if err != nil {
		return fmt.Errorf("world %s: %w", rt.Spec.ID, err)
	}
	if kind := rt.blocks.PoiKind(prev.Block); kind != "" {
		rt.pois.Remove(p)
	}
	if kind := rt.blocks.PoiKind(st.Block); kind != "" {
		rt.pois.Add(p, kind)
	}
	return nil
}

// Place is SetBlock by block id.
func (rt *Runtime) Place(p linking.Pos, id string, axis linking.Axis) error {
	st, err := rt.blocks.State(id, axis)
	if err != nil {
		return fmt.Errorf("world %s: %w", rt.Spec.ID, err)
	}
	return rt.SetBlock(p, st)
}

// Export snapshots the world's blocks.
func (rt *Runtime) Export() snapv1.WorldV1 {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.store.Export(rt.Spec.ID, rt.Spec.Type)
}

// Import replaces the world's blocks and rebuilds the poi index.
func (rt *Runtime) Import(snap snapv1.WorldV1) error {
	if snap.Header.WorldID != "" && snap.Header.WorldID != rt.Spec.ID {
		return fmt.Errorf("snapshot world %q does not match %s", snap.Header.WorldID, rt.Spec.ID)
	}
	if snap.Height != rt.Spec.Height || snap.MinY != rt.Spec.MinY {
		return fmt.Errorf("snapshot height %d/min_y %d does not match world %s", snap.Height, snap.MinY, rt.Spec.ID)
	}
	s, err := store.Import(snap)
	if err != nil {
		return fmt.Errorf("world %s: %w", rt.Spec.ID, err)
	}
	s.Bounds.BoundaryR = rt.Spec.BoundaryR

	pois := poi.New(rt.Spec.BoundaryR)
	var bad error
	s.Each(func(p linking.Pos, st linking.BlockState) {
		if bad != nil {
			return
		}
		if _, err := rt.blocks.State(st.Block, st.Axis); err != nil {
			bad = fmt.Errorf("world %s: snapshot %s: %w", rt.Spec.ID, p, err)
			return
		}
		if kind := rt.blocks.PoiKind(st.Block); kind != "" {
			pois.Add(p, kind)
		}
	})
	if bad != nil {
		return bad
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.store = s
	rt.pois = pois
	return nil
}

// DecisionRecord is the persisted form of one handled portal trip.
type DecisionRecord struct {
	Time       time.Time               `json:"ts"`
	EntityID   string                  `json:"entity_id"`
	FromWorld  string                  `json:"from_world"`
	ToWorld    string                  `json:"to_world"`
	Portal     linking.Pos             `json:"portal"`
	Mode       string                  `json:"mode"`
	Signature  []string                `json:"signature"`
	Target     linking.Pos             `json:"target"`
	Candidates int                     `json:"candidates"`
	Found      bool                    `json:"found"`
	Result     *linking.TeleportTarget `json:"result,omitempty"`
}

func NewDecisionRecord(now time.Time, from, to string, e linking.Entity, d linking.Decision) DecisionRecord {
	rec := DecisionRecord{
		Time:       now.UTC(),
		EntityID:   e.ID,
		FromWorld:  from,
		ToWorld:    to,
		Portal:     e.Portal,
		Mode:       string(d.Mode),
		Signature:  d.Signature.Strings(),
		Target:     d.Target,
		Candidates: d.Candidates,
		Found:      d.Found,
	}
	if d.Found {
		res := d.Result
		rec.Result = &res
	}
	return rec
}

// DecisionSink receives every handled decision. Implementations must not block.
type DecisionSink interface {
	RecordDecision(rec DecisionRecord)
}

type linkMetricKey struct {
	From string
	To   string
	Mode string
}

type LinkMetric struct {
	From  string
	To    string
	Mode  string
	Count uint64
}

type Manager struct {
	mu sync.RWMutex

	runtimes  map[string]*Runtime
	defaultID string
	linker    *linking.Linker
	markers   catalogs.TagSet
	sinks     []DecisionSink
	totals    map[linkMetricKey]uint64
	logger    *log.Logger

	// now is swapped in tests.
	now func() time.Time
}

func NewManager(cfg Config, cats *catalogs.Catalogs, logger *log.Logger) (*Manager, error) {
	if cats == nil {
		return nil, fmt.Errorf("nil catalogs")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	markers := cats.Blocks.Tag(cfg.Linking.MarkerTag)
	if markers.Len() == 0 && logger != nil {
		logger.Printf("multiworld: block tag %q is empty, every signature will be empty", cfg.Linking.MarkerTag)
	}
	runtimes := map[string]*Runtime{}
	for _, spec := range cfg.Worlds {
		runtimes[spec.ID] = newRuntime(spec, &cats.Blocks)
	}
	return &Manager{
		runtimes:  runtimes,
		defaultID: cfg.DefaultWorldID,
		linker:    linking.New(cfg.LinkingConfig(), markers, nil, logger),
		markers:   markers,
		totals:    map[linkMetricKey]uint64{},
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (m *Manager) DefaultWorldID() string { return m.defaultID }

func (m *Manager) Linker() *linking.Linker { return m.linker }

// Markers returns the block tag used as linking markers.
func (m *Manager) Markers() catalogs.TagSet { return m.markers }

func (m *Manager) WorldIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.runtimes))
	for id := range m.runtimes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) Runtime(id string) *Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runtimes[id]
}

func (m *Manager) runtime(id string) (*Runtime, error) {
	rt := m.Runtime(id)
	if rt == nil {
		return nil, fmt.Errorf("world %q: %w", id, ErrUnknownWorld)
	}
	return rt, nil
}

func (m *Manager) AddSink(s DecisionSink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Teleport resolves a trip of e through its portal in fromWorld into toWorld.
// handled is false when no linking world is involved; the decision then comes
// from the nearest-frame policy and is neither counted nor recorded.
func (m *Manager) Teleport(fromWorld string, e linking.Entity, toWorld string) (d linking.Decision, handled bool, err error) {
	src, err := m.runtime(fromWorld)
	if err != nil {
		return linking.Decision{}, false, err
	}
	dst, err := m.runtime(toWorld)
	if err != nil {
		return linking.Decision{}, false, err
	}
	e.World = src
	if !m.linker.ShouldHandle(src, dst) {
		return m.linker.ResolveBaseline(e, dst), false, nil
	}
	d = m.linker.Resolve(e, dst)
	m.record(NewDecisionRecord(m.now(), fromWorld, toWorld, e, d))
	return d, true, nil
}

func (m *Manager) record(rec DecisionRecord) {
	m.mu.Lock()
	m.totals[linkMetricKey{From: rec.FromWorld, To: rec.ToWorld, Mode: rec.Mode}]++
	sinks := append([]DecisionSink(nil), m.sinks...)
	m.mu.Unlock()
	for _, s := range sinks {
		s.RecordDecision(rec)
	}
}

// LinkMetrics returns decision counts per route and mode.
func (m *Manager) LinkMetrics() []LinkMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LinkMetric, 0, len(m.totals))
	for k, n := range m.totals {
		out = append(out, LinkMetric{From: k.From, To: k.To, Mode: k.Mode, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Mode < out[j].Mode
	})
	return out
}

func (m *Manager) ExportSnapshot(worldID, path string) error {
	rt, err := m.runtime(worldID)
	if err != nil {
		return err
	}
	if err := snapv1.WriteSnapshot(path, rt.Export()); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

func (m *Manager) ImportSnapshot(worldID, path string) error {
	rt, err := m.runtime(worldID)
	if err != nil {
		return err
	}
	snap, err := snapv1.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if err := rt.Import(snap); err != nil {
		return err
	}
	if m.logger != nil {
		m.logger.Printf("multiworld: loaded %s from %s (%d chunks, %d poi cells)", worldID, path, len(snap.Chunks), rt.PoiCount())
	}
	return nil
}
