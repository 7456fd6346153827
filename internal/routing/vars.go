package routing

import (
	"fmt"
	"math"
)

type varKind int

const (
	kindNext varKind = iota
	kindVehicle
	kindCumul
	kindSlack
)

type intVar struct {
	kind  varKind
	dim   *dimension
	index int64
	lo    int64
	hi    int64
}

func (v *intVar) Name() string {
	switch v.kind {
	case kindNext:
		return fmt.Sprintf("Nexts%d", v.index)
	case kindVehicle:
		return fmt.Sprintf("Vehicle%d", v.index)
	case kindCumul:
		return fmt.Sprintf("%s.Cumul%d", v.dim.name, v.index)
	default:
		return fmt.Sprintf("%s.Slack%d", v.dim.name, v.index)
	}
}

func (v *intVar) Min() int64 { return v.lo }
func (v *intVar) Max() int64 { return v.hi }

// SetRange narrows the domain. An empty domain makes the model infeasible,
// which Solve reports.
func (v *intVar) SetRange(lo, hi int64) {
	if lo > v.lo {
		v.lo = lo
	}
	if hi < v.hi {
		v.hi = hi
	}
}

func (v *intVar) empty() bool { return v.lo > v.hi }

type interval struct {
	name     string
	startMin int64
	startMax int64
	duration int64
}

func (iv *interval) Name() string    { return iv.name }
func (iv *interval) StartMin() int64 { return iv.startMin }
func (iv *interval) StartMax() int64 { return iv.startMax }
func (iv *interval) Duration() int64 { return iv.duration }

func addSat(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
