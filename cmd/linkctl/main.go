package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cornerlink/internal/persistence/indexdb"
	persistlog "cornerlink/internal/persistence/log"
	"cornerlink/internal/persistence/snapshot"
	"cornerlink/internal/sim/catalogs"
	"cornerlink/internal/sim/linking"
	"cornerlink/internal/sim/multiworld"
)

const usage = `usage: linkctl <command> [flags]

commands:
  build      write portal frames into a world snapshot
  inspect    locate the frame at a position and print its signature
  resolve    resolve one portal trip and record the decision
  decisions  print recorded decisions
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	logger := log.New(os.Stderr, "[linkctl] ", log.LstdFlags|log.Lmicroseconds)

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:], logger)
	case "inspect":
		err = runInspect(os.Args[2:], os.Stdout, logger)
	case "resolve":
		err = runResolve(os.Args[2:], os.Stdout, logger)
	case "decisions":
		err = runDecisions(os.Args[2:], os.Stdout)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalf("%s: %v", os.Args[1], err)
	}
}

// env holds the flags every command shares.
type env struct {
	configDir  string
	worldsPath string
}

func (e *env) register(fs *flag.FlagSet) {
	fs.StringVar(&e.configDir, "configs", "./configs", "config directory (blocks.json)")
	fs.StringVar(&e.worldsPath, "worlds", "./configs/worlds.yaml", "multi-world config path")
}

func (e *env) manager(logger *log.Logger) (*multiworld.Manager, *catalogs.Catalogs, error) {
	cats, err := catalogs.Load(e.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalogs: %w", err)
	}
	cfg, err := multiworld.Load(e.worldsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load worlds: %w", err)
	}
	m, err := multiworld.NewManager(cfg, cats, logger)
	if err != nil {
		return nil, nil, err
	}
	return m, cats, nil
}

func snapshotPath(dir, worldID string) string {
	return filepath.Join(dir, strings.ToLower(worldID)+".snap.zst")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runBuild(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	var (
		e          env
		frames     listFlag
		markers    listFlag
		blocks     listFlag
		worldID    = fs.String("world", "", "world id (default: default_world_id)")
		snapDir    = fs.String("snapshots", "./data/snapshots", "snapshot directory")
		outPath    = fs.String("out", "", "snapshot output path (default: <snapshots>/<world>.snap.zst)")
		fresh      = fs.Bool("fresh", false, "start from an empty world instead of the existing snapshot")
		frameBlock = fs.String("frame_block", "OBSIDIAN", "block id of the frame ring")
		dataDir    = fs.String("data", "", "runtime data directory; indexes the written snapshot in <data>/index.db")
	)
	e.register(fs)
	fs.Var(&frames, "frame", "portal frame x,y,z,width,height,axis (repeatable)")
	fs.Var(&markers, "markers", "corner blocks a,b,c,d for the frame at the same position, - for none (repeatable)")
	fs.Var(&blocks, "set", "single block x,y,z,BLOCK[,axis] (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(markers) > len(frames) {
		return fmt.Errorf("%d -markers given for %d -frame", len(markers), len(frames))
	}

	m, _, err := e.manager(logger)
	if err != nil {
		return err
	}
	if *worldID == "" {
		*worldID = m.DefaultWorldID()
	}
	rt := m.Runtime(*worldID)
	if rt == nil {
		return fmt.Errorf("world %q: %w", *worldID, multiworld.ErrUnknownWorld)
	}
	out := *outPath
	if out == "" {
		out = snapshotPath(*snapDir, *worldID)
	}
	if !*fresh && fileExists(out) {
		if err := m.ImportSnapshot(*worldID, out); err != nil {
			return err
		}
	}

	for i, raw := range frames {
		f, err := parseFrame(raw)
		if err != nil {
			return err
		}
		var corners [4]string
		if i < len(markers) {
			if corners, err = parseMarkers(markers[i]); err != nil {
				return err
			}
		}
		r, err := rt.BuildFrame(f.Min, f.Axis, f.Width, f.Height, *frameBlock, corners)
		if err != nil {
			return fmt.Errorf("frame %q: %w", raw, err)
		}
		logger.Printf("built %dx%d frame at %s axis=%s corners=%v", r.Width, r.Height, r.Min, f.Axis, corners)
	}
	for _, raw := range blocks {
		b, err := parseBlock(raw)
		if err != nil {
			return err
		}
		if err := rt.Place(b.Pos, b.Block, b.Axis); err != nil {
			return fmt.Errorf("set %q: %w", raw, err)
		}
	}

	if err := m.ExportSnapshot(*worldID, out); err != nil {
		return err
	}
	logger.Printf("wrote %s (%d poi cells)", out, rt.PoiCount())

	if *dataDir != "" {
		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		idx.RecordSnapshot(out, rt.Export())
		return idx.Close()
	}
	return nil
}

type inspectResult struct {
	World     string        `json:"world"`
	Pos       linking.Pos   `json:"pos"`
	State     string        `json:"state"`
	Rect      *linking.Rect `json:"rect,omitempty"`
	Axis      linking.Axis  `json:"axis,omitempty"`
	Posts     []linking.Pos `json:"posts,omitempty"`
	Signature []string      `json:"signature"`
}

func runInspect(args []string, out io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	var (
		e        env
		snapPath = fs.String("snapshot", "", "path to .snap.zst")
		posRaw   = fs.String("pos", "", "cell x,y,z")
	)
	e.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *snapPath == "" || *posRaw == "" {
		return fmt.Errorf("missing -snapshot or -pos")
	}
	pos, err := parsePos(*posRaw)
	if err != nil {
		return err
	}
	h, err := snapshot.ReadHeader(*snapPath)
	if err != nil {
		return err
	}
	m, _, err := e.manager(logger)
	if err != nil {
		return err
	}
	if err := m.ImportSnapshot(h.WorldID, *snapPath); err != nil {
		return err
	}
	rt := m.Runtime(h.WorldID)
	span := m.Linker().Config().Span

	st := rt.BlockState(pos)
	res := inspectResult{
		World:     h.WorldID,
		Pos:       pos,
		State:     st.String(),
		Signature: linking.SignatureAt(rt, pos, m.Markers(), span).Strings(),
	}
	if st.HasAxis() {
		r := linking.Locate(rt, pos, st.Axis, span)
		posts := linking.CornerPosts(r, st.Axis)
		res.Rect = &r
		res.Axis = st.Axis
		res.Posts = posts[:]
	}
	return writeJSON(out, res)
}

type resolveResult struct {
	Handled  bool                      `json:"handled"`
	Decision multiworld.DecisionRecord `json:"decision"`
}

func runResolve(args []string, out io.Writer, logger *log.Logger) (err error) {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	var (
		e         env
		from      = fs.String("from", "OVERWORLD", "source world id")
		to        = fs.String("to", "NETHER", "destination world id")
		portalRaw = fs.String("portal", "", "portal cell x,y,z the entity stands in")
		posRaw    = fs.String("pos", "", "entity position x,y,z (default: bottom center of the portal cell)")
		entityID  = fs.String("id", "cli", "entity id")
		width     = fs.Float64("width", 0.6, "entity width")
		height    = fs.Float64("height", 1.8, "entity height")
		yaw       = fs.Float64("yaw", 0, "entity yaw")
		pitch     = fs.Float64("pitch", 0, "entity pitch")
		snapDir   = fs.String("snapshots", "./data/snapshots", "snapshot directory (<world>.snap.zst per world)")
		dataDir   = fs.String("data", "", "runtime data directory for the decision log and index (empty to disable)")
		disableDB = fs.Bool("disable_db", false, "skip the sqlite decision index")
	)
	e.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *portalRaw == "" {
		return fmt.Errorf("missing -portal")
	}
	portal, err := parsePos(*portalRaw)
	if err != nil {
		return err
	}
	pos := linking.Vec3{X: float64(portal.X) + 0.5, Y: float64(portal.Y), Z: float64(portal.Z) + 0.5}
	if *posRaw != "" {
		if pos, err = parseVec(*posRaw); err != nil {
			return err
		}
	}

	m, cats, err := e.manager(logger)
	if err != nil {
		return err
	}
	for _, id := range m.WorldIDs() {
		p := snapshotPath(*snapDir, id)
		if !fileExists(p) {
			continue
		}
		if err := m.ImportSnapshot(id, p); err != nil {
			return err
		}
	}

	if *dataDir != "" {
		dl := persistlog.NewDecisionLogger(*dataDir)
		dl.OnError(func(err error) { logger.Printf("decision log: %v", err) })
		defer func() {
			if cerr := dl.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close decision log: %w", cerr)
			}
			if n := dl.WriteErrors(); n > 0 && err == nil {
				err = fmt.Errorf("decision log: %d failed writes", n)
			}
		}()
		m.AddSink(dl)
		if !*disableDB {
			idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer func() {
				if cerr := idx.Close(); cerr != nil && err == nil {
					err = fmt.Errorf("close index: %w", cerr)
				}
			}()
			if err := idx.UpsertCatalogs(cats); err != nil {
				logger.Printf("index catalogs: %v", err)
			}
			m.AddSink(idx)
		}
	}

	ent := linking.Entity{
		ID:     *entityID,
		Pos:    pos,
		Portal: portal,
		Yaw:    *yaw,
		Pitch:  *pitch,
		Width:  *width,
		Height: *height,
	}
	d, handled, err := m.Teleport(*from, ent, *to)
	if err != nil {
		return err
	}
	if !handled {
		logger.Printf("%s -> %s does not involve a linking world; nearest frame used", *from, *to)
	}
	return writeJSON(out, resolveResult{
		Handled:  handled,
		Decision: multiworld.NewDecisionRecord(time.Now(), *from, *to, ent, d),
	})
}

func runDecisions(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decisions", flag.ContinueOnError)
	var (
		dataDir = fs.String("data", "./data", "runtime data directory")
		limit   = fs.Int("limit", 20, "max decisions to print (newest last for logs, newest first for the index)")
		source  = fs.String("source", "log", "log (jsonl files) or index (sqlite)")
		counts  = fs.Bool("counts", false, "print decision counts per mode instead of records (index only)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch *source {
	case "index":
		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			return err
		}
		defer idx.Close()
		if *counts {
			byMode, err := idx.ModeCounts(context.Background())
			if err != nil {
				return err
			}
			return writeJSON(out, byMode)
		}
		recs, err := idx.RecentDecisions(context.Background(), *limit)
		if err != nil {
			return err
		}
		return printRecords(out, recs)
	case "log":
		if *counts {
			return fmt.Errorf("-counts needs -source index")
		}
		files, err := persistlog.ListDecisionFiles(filepath.Join(*dataDir, "decisions"))
		if err != nil {
			return err
		}
		var recs []multiworld.DecisionRecord
		for _, path := range files {
			err := persistlog.ReadDecisions(path, func(rec multiworld.DecisionRecord) bool {
				recs = append(recs, rec)
				if *limit > 0 && len(recs) > *limit {
					recs = recs[1:]
				}
				return true
			})
			if err != nil {
				return err
			}
		}
		return printRecords(out, recs)
	default:
		return fmt.Errorf("unknown -source %q", *source)
	}
}

func printRecords(out io.Writer, recs []multiworld.DecisionRecord) error {
	enc := json.NewEncoder(out)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
