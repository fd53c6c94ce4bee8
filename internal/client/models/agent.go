package models

import (
	"math"
	"strings"
)

// ScalarDim is one named dimension of a personality or emotion matrix.
type ScalarDim struct {
	Description string   `json:"description,omitempty"`
	Value       float64  `json:"value"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
}

// Percent maps Value onto 0..100 within [Min, Max] (defaults 0 and 100).
func (d ScalarDim) Percent() float64 {
	lo, hi := 0.0, 100.0
	if d.Min != nil {
		lo = *d.Min
	}
	if d.Max != nil {
		hi = *d.Max
	}
	v := math.Max(lo, math.Min(hi, d.Value))
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return (v - lo) / span * 100
}

// Matrix is a set of named dimensions, e.g. "openness" or "joy".
type Matrix map[string]ScalarDim

// AgentStatus is the telemetry of the active agent.
type AgentStatus struct {
	Name        string
	Identity    string
	MBTI        string
	Personality Matrix
	Emotions    Matrix
	Expression  string
}

// NoThought is shown when the agent has not published a thought yet.
const NoThought = "No recent thought."

func upper(s string) string {
	return strings.ToUpper(s)
}
