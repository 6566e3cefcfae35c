package multiworld

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cornerlink/internal/sim/linking"
)

func TestDecisionRecord_MatchesSchema(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "link_decision.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	validate := func(rec DecisionRecord) {
		t.Helper()
		b, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	e := linking.Entity{ID: "A1", Portal: linking.Pos{X: 1, Y: 2, Z: 3}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	found := linking.Decision{
		Mode:       linking.ModeLinked,
		Signature:  linking.Signature{linking.LowerNear: {Block: "GOLD_BLOCK"}, linking.UpperFar: {Block: "LOG", Axis: linking.AxisZ}},
		Target:     linking.Pos{X: 10, Y: 64, Z: 5},
		Candidates: 6,
		Found:      true,
		Result: linking.TeleportTarget{
			Rect:      linking.Rect{Min: linking.Pos{X: 9, Y: 64, Z: 5}, Width: 2, Height: 3},
			FrameAxis: linking.AxisZ,
			Axis:      linking.AxisX,
			Offset:    linking.Vec3{X: 0.5, Y: 0.25},
		},
	}
	rec := NewDecisionRecord(now, "OVERWORLD", "NETHER", e, found)
	if rec.Result == nil || rec.Signature[3] != "LOG[axis=z]" {
		t.Fatalf("record %+v", rec)
	}
	validate(rec)

	missed := NewDecisionRecord(now, "NETHER", "OVERWORLD", e, linking.Decision{Mode: linking.ModeLinkedFallback})
	if missed.Result != nil {
		t.Fatalf("result set on a miss")
	}
	validate(missed)
}
