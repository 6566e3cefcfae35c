package main

import (
	"fmt"
	"strconv"
	"strings"

	"cornerlink/internal/sim/linking"
)

// listFlag collects every occurrence of a repeatable flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, " ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func splitFields(s string, n int, what string) ([]string, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%s %q: want %d comma-separated fields, got %d", what, s, n, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func parseInts(parts []string, what string) ([]int, error) {
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%s: bad integer %q", what, p)
		}
		out[i] = v
	}
	return out, nil
}

func parsePos(s string) (linking.Pos, error) {
	parts, err := splitFields(s, 3, "position")
	if err != nil {
		return linking.Pos{}, err
	}
	v, err := parseInts(parts, "position")
	if err != nil {
		return linking.Pos{}, err
	}
	return linking.Pos{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseVec(s string) (linking.Vec3, error) {
	parts, err := splitFields(s, 3, "vector")
	if err != nil {
		return linking.Vec3{}, err
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return linking.Vec3{}, fmt.Errorf("vector: bad number %q", p)
		}
		v[i] = f
	}
	return linking.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

type frameSpec struct {
	Min    linking.Pos
	Width  int
	Height int
	Axis   linking.Axis
}

// parseFrame reads "x,y,z,width,height,axis".
func parseFrame(s string) (frameSpec, error) {
	parts, err := splitFields(s, 6, "frame")
	if err != nil {
		return frameSpec{}, err
	}
	v, err := parseInts(parts[:5], "frame")
	if err != nil {
		return frameSpec{}, err
	}
	axis, err := linking.ParseAxis(parts[5])
	if err != nil || axis == linking.AxisNone {
		return frameSpec{}, fmt.Errorf("frame %q: axis must be x or z", s)
	}
	return frameSpec{Min: linking.Pos{X: v[0], Y: v[1], Z: v[2]}, Width: v[3], Height: v[4], Axis: axis}, nil
}

// parseMarkers reads four corner block ids in slot order; "-" or "" leaves a
// corner as frame.
func parseMarkers(s string) ([4]string, error) {
	var out [4]string
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	parts, err := splitFields(s, 4, "markers")
	if err != nil {
		return out, err
	}
	for i, p := range parts {
		if p != "-" {
			out[i] = p
		}
	}
	return out, nil
}

type blockSpec struct {
	Pos   linking.Pos
	Block string
	Axis  linking.Axis
}

// parseBlock reads "x,y,z,BLOCK" or "x,y,z,BLOCK,axis".
func parseBlock(s string) (blockSpec, error) {
	n := len(strings.Split(s, ","))
	if n != 4 && n != 5 {
		return blockSpec{}, fmt.Errorf("block %q: want x,y,z,BLOCK[,axis]", s)
	}
	parts, _ := splitFields(s, n, "block")
	v, err := parseInts(parts[:3], "block")
	if err != nil {
		return blockSpec{}, err
	}
	b := blockSpec{Pos: linking.Pos{X: v[0], Y: v[1], Z: v[2]}, Block: parts[3]}
	if n == 5 {
		if b.Axis, err = linking.ParseAxis(parts[4]); err != nil {
			return blockSpec{}, fmt.Errorf("block %q: %w", s, err)
		}
	}
	return b, nil
}
