package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
)

// Strategy builds a neighbor index over projected points. Every strategy
// must report exactly the points at Euclidean distance strictly below the
// radius, in ascending index order.
type Strategy interface {
	Name() string
	Index(points []projection.Point, radius float64) Index
}

// Index answers neighborhood queries for the points it was built from.
type Index interface {
	// Neighbors appends to buf the indices j with dist(i, j) < radius.
	Neighbors(i int, buf []int) []int
}

// StrategyByName resolves "brute" or "grid".
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "", "grid":
		return Grid{}, nil
	case "brute", "bruteforce":
		return BruteForce{}, nil
	default:
		return nil, fmt.Errorf("unknown neighbor strategy %q (use grid or brute)", name)
	}
}

func within(a, b projection.Point, radius float64) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) < radius
}

// BruteForce compares every pair of points.
type BruteForce struct{}

func (BruteForce) Name() string { return "brute" }

func (BruteForce) Index(points []projection.Point, radius float64) Index {
	return bruteIndex{points: points, radius: radius}
}

type bruteIndex struct {
	points []projection.Point
	radius float64
}

func (b bruteIndex) Neighbors(i int, buf []int) []int {
	p := b.points[i]
	for j, q := range b.points {
		if within(p, q, b.radius) {
			buf = append(buf, j)
		}
	}
	return buf
}

// Grid bins points into square cells of side radius and only compares
// points in nearby cells.
type Grid struct{}

func (Grid) Name() string { return "grid" }

// maxCell bounds cell coordinates; beyond it the grid falls back to brute force.
const maxCell = 1 << 52

type cell struct{ x, y int64 }

func (Grid) Index(points []projection.Point, radius float64) Index {
	if !(radius > 0) || math.IsInf(radius, 1) {
		return bruteIndex{points: points, radius: radius}
	}
	g := &gridIndex{
		points: points,
		radius: radius,
		cells:  map[cell][]int{},
		homeOf: make(map[int]cell, len(points)),
	}
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			// never within radius of anything, itself included
			continue
		}
		fx, fy := math.Floor(p.X/radius), math.Floor(p.Y/radius)
		if math.Abs(fx) > maxCell || math.Abs(fy) > maxCell {
			return bruteIndex{points: points, radius: radius}
		}
		c := cell{int64(fx), int64(fy)}
		g.cells[c] = append(g.cells[c], i)
		g.homeOf[i] = c
	}
	return g
}

type gridIndex struct {
	points []projection.Point
	radius float64
	cells  map[cell][]int
	homeOf map[int]cell
}

// span is the cell search distance; two cells absorb rounding in the
// floor(x/radius) binning.
const span = 2

func (g *gridIndex) Neighbors(i int, buf []int) []int {
	c, ok := g.homeOf[i]
	if !ok {
		return buf
	}
	start := len(buf)
	p := g.points[i]
	for dx := int64(-span); dx <= span; dx++ {
		for dy := int64(-span); dy <= span; dy++ {
			for _, j := range g.cells[cell{c.x + dx, c.y + dy}] {
				if within(p, g.points[j], g.radius) {
					buf = append(buf, j)
				}
			}
		}
	}
	sort.Ints(buf[start:])
	return buf
}
