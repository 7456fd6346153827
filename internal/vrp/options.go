package vrp

import (
	"log"
	"time"
)

// Options tune the encoder and the search. The three span/zone toggles are
// independent so each mechanism can be switched off on its own.
type Options struct {
	TimeLimit      time.Duration
	LogSearch      bool
	Seed           int64
	IterationLimit int

	SlackMax            int64 // seconds of waiting allowed at a stop
	DropPenalty         int64 // cost of leaving an order unassigned
	SoftWindowPenalty   int64 // cost per second away from the preferred window end
	SpanCostCoefficient int64

	EnableSpanCost       bool
	EnableSpanUpperBound bool
	EnableRouteZones     bool

	// Location for response timestamps; UTC when nil.
	Location *time.Location
	Logger   *log.Logger
}

func DefaultOptions() Options {
	return Options{
		TimeLimit:            300 * time.Second,
		LogSearch:            true,
		Seed:                 1,
		IterationLimit:       500,
		SlackMax:             30000,
		DropPenalty:          20000,
		SoftWindowPenalty:    2,
		SpanCostCoefficient:  1,
		EnableSpanCost:       true,
		EnableSpanUpperBound: true,
		EnableRouteZones:     true,
	}
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}
