package cron

import (
	"fmt"
	"strings"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/flowsync"
)

// FallbackDelay is added to the base instant when a valid expression has no
// next occurrence.
const FallbackDelay = time.Hour

// parser accepts exactly six fields, seconds first. Descriptors such as
// "@hourly" are not accepted.
var parser = cronlib.NewParser(
	cronlib.Second | cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// MalformedScheduleError reports a cron expression that cannot be parsed.
type MalformedScheduleError struct {
	Expr string
	Err  error
}

func (e *MalformedScheduleError) Error() string {
	return fmt.Sprintf("flowsync: malformed schedule %q: %v", e.Expr, e.Err)
}

func (e *MalformedScheduleError) Unwrap() []error {
	return []error{flowsync.ErrMalformedSchedule, e.Err}
}

// Evaluator parses and caches cron expressions. It is safe for concurrent
// use.
type Evaluator struct {
	mu     sync.RWMutex
	parsed map[string]cronlib.Schedule
}

// NewEvaluator returns an Evaluator with an empty cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{parsed: make(map[string]cronlib.Schedule)}
}

// Parse returns the schedule for expr, parsing it on first use.
func (e *Evaluator) Parse(expr string) (cronlib.Schedule, error) {
	expr = strings.TrimSpace(expr)

	e.mu.RLock()
	sched, ok := e.parsed[expr]
	e.mu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := parse(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.parsed[expr] = sched
	e.mu.Unlock()
	return sched, nil
}

// Validate reports whether expr is a well-formed 6-field expression.
func (e *Evaluator) Validate(expr string) error {
	_, err := e.Parse(expr)
	return err
}

// Next returns the first instant strictly after from, in UTC, matching
// expr. If the expression never matches again, it returns
// from + FallbackDelay.
func (e *Evaluator) Next(expr string, from time.Time) (time.Time, error) {
	sched, err := e.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	from = from.UTC()
	next := sched.Next(from)
	if next.IsZero() {
		return from.Add(FallbackDelay), nil
	}
	return next.UTC(), nil
}

func parse(expr string) (cronlib.Schedule, error) {
	if expr == "" {
		return nil, &MalformedScheduleError{Expr: expr, Err: fmt.Errorf("empty expression")}
	}
	// A TZ prefix would move evaluation out of the UTC calendar.
	if strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return nil, &MalformedScheduleError{Expr: expr, Err: fmt.Errorf("time zone prefix not supported")}
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, &MalformedScheduleError{Expr: expr, Err: err}
	}
	return sched, nil
}

var defaultEvaluator = NewEvaluator()

// NextOccurrence evaluates expr against from using a process-wide cache.
func NextOccurrence(expr string, from time.Time) (time.Time, error) {
	return defaultEvaluator.Next(expr, from)
}
