// Package routing defines the capability surface the adapter needs from a
// constraint-based vehicle routing engine, plus an in-process engine that
// implements it.
//
// Indices handed to callbacks and variables are engine-internal; an
// IndexManager converts between them and the caller's node ids.
package routing

import (
	"context"
	"log"
	"time"
)

// Status codes reported by Model.Status.
const (
	StatusNotSolved      = 0
	StatusSuccess        = 1
	StatusPartialSuccess = 2
	StatusFail           = 3
	StatusFailTimeout    = 4
	StatusInvalid        = 5
	StatusInfeasible     = 6
	StatusOptimal        = 7
)

// TransitFunc and UnaryTransitFunc must be pure: the engine calls them any
// number of times in any order.
type TransitFunc func(fromIndex, toIndex int64) int64
type UnaryTransitFunc func(index int64) int64

type IndexManager interface {
	NumNodes() int
	NumVehicles() int
	NumIndices() int
	NodeToIndex(node int) int64
	IndexToNode(index int64) int
	StartIndex(vehicle int) int64
	EndIndex(vehicle int) int64
	IsStart(index int64) bool
	IsEnd(index int64) bool
}

type IntVar interface {
	Name() string
	Min() int64
	Max() int64
	SetRange(lo, hi int64)
}

type IntervalVar interface {
	Name() string
	StartMin() int64
	StartMax() int64
	Duration() int64
}

type Dimension interface {
	Name() string
	CumulVar(index int64) IntVar
	SlackVar(index int64) IntVar
	SetCumulVarSoftUpperBound(index, bound, coefficient int64)
	SetCumulVarSoftLowerBound(index, bound, coefficient int64)
	SetSpanCostCoefficientForAllVehicles(coefficient int64)
	SetSpanCostCoefficientForVehicle(coefficient int64, vehicle int)
	SetSpanUpperBoundForVehicle(bound int64, vehicle int)
	SetBreakIntervalsOfVehicle(breaks []IntervalVar, vehicle int)
}

type Model interface {
	RegisterTransitCallback(fn TransitFunc) int
	RegisterUnaryTransitCallback(fn UnaryTransitFunc) int

	AddDimension(callback int, slackMax, capacity int64, fixStartCumulToZero bool, name string) bool
	AddDimensionWithVehicleCapacity(callback int, slackMax int64, capacities []int64, fixStartCumulToZero bool, name string) bool
	AddDimensionWithVehicleTransits(callbacks []int, slackMax, capacity int64, fixStartCumulToZero bool, name string) bool
	AddDimensionWithVehicleTransitAndCapacity(callbacks []int, slackMax int64, capacities []int64, fixStartCumulToZero bool, name string) bool
	MutableDimension(name string) (Dimension, bool)

	NextVar(index int64) IntVar
	VehicleVar(index int64) IntVar
	NewFixedDurationInterval(startMin, startMax, duration int64, name string) IntervalVar

	AddPickupAndDelivery(pickup, delivery int64)
	AddEquality(a, b IntVar)
	AddLessOrEqual(a, b IntVar)
	AddDisjunction(indices []int64, penalty int64) int

	SetArcCostEvaluatorOfAllVehicles(callback int)
	SetArcCostEvaluatorOfVehicle(callback int, vehicle int)
	SetVehicleUsedWhenEmpty(used bool, vehicle int)

	AddVariableMinimizedByFinalizer(v IntVar)
	AddVariableMaximizedByFinalizer(v IntVar)
	AddToAssignment(v IntVar)

	// Solve returns nil when no assignment was found; Status tells why.
	Solve(ctx context.Context, params SearchParameters) (Assignment, error)
	Status() int
}

// Assignment is a solution. Cumul variables of visited nodes, and slack
// variables added with AddToAssignment, are fixed, so Min and Max agree for
// them. Other slacks report their domain.
type Assignment interface {
	Value(v IntVar) int64
	Min(v IntVar) int64
	Max(v IntVar) int64
	StartValue(iv IntervalVar) int64
	Performed(iv IntervalVar) bool
	ObjectiveValue() int64
}

type SearchParameters struct {
	TimeLimit      time.Duration
	LogSearch      bool
	Seed           int64
	IterationLimit int
	Logger         *log.Logger
}

// Backend builds managers and models for one engine.
type Backend interface {
	NewIndexManager(numNodes, numVehicles int, starts, ends []int) (IndexManager, error)
	NewModel(mgr IndexManager) (Model, error)
}
