package nats

import (
	"fmt"
	"strings"
)

// Subject naming convention:
// {prefix}.{operation}
// Examples:
// - execsim.estimate
// - execsim.plan
// - execsim.exit

// Operations
const (
	OpEstimate = "estimate"
	OpPlan     = "plan"
	OpSimulate = "simulate"
	OpExit     = "exit"
	OpMetrics  = "metrics"
)

// Operations lists every operation the service answers
var Operations = []string{OpEstimate, OpPlan, OpSimulate, OpExit, OpMetrics}

// Subjects builds service subjects under one prefix
type Subjects struct {
	Prefix string
}

// NewSubjects creates a builder; an empty prefix falls back to "execsim"
func NewSubjects(prefix string) Subjects {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "execsim"
	}
	return Subjects{Prefix: prefix}
}

// For returns the subject of operation op
func (s Subjects) For(op string) string {
	return s.Prefix + "." + op
}

func (s Subjects) Estimate() string { return s.For(OpEstimate) }
func (s Subjects) Plan() string     { return s.For(OpPlan) }
func (s Subjects) Simulate() string { return s.For(OpSimulate) }
func (s Subjects) Exit() string     { return s.For(OpExit) }
func (s Subjects) Metrics() string  { return s.For(OpMetrics) }

// Operation extracts the operation from a subject under this prefix
func (s Subjects) Operation(subject string) (string, error) {
	op := strings.TrimPrefix(subject, s.Prefix+".")
	if op == subject || op == "" || strings.Contains(op, ".") {
		return "", fmt.Errorf("invalid subject format: %s", subject)
	}
	return op, nil
}
