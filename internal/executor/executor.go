// Package executor replays action sequences against the live document.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/sequence"
)

// Clicker resolves a selector against the current document and clicks the
// first match. found is false when nothing matched.
type Clicker interface {
	Click(ctx context.Context, selector string) (found bool, err error)
}

// StepError is a backend failure while replaying one step.
type StepError struct {
	Sequence string
	Index    int
	Step     sequence.Step
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("sequence %q step %d %s: %v", e.Sequence, e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Outcome records what happened to one step.
type Outcome struct {
	Index    int           `json:"index"`
	Step     sequence.Step `json:"step"`
	Resolved bool          `json:"resolved"`
}

// Report summarizes one replay.
type Report struct {
	Sequence string    `json:"sequence"`
	Steps    []Outcome `json:"steps"`
	Missing  int       `json:"missing"`
}

// Executor runs steps strictly in order.
type Executor struct {
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns an executor logging through logger.
func New(logger zerolog.Logger) *Executor {
	return &Executor{logger: logger, sleep: poll.Sleep}
}

// Execute replays seq. A click whose selector resolves to nothing is logged
// and skipped; only backend failures and cancellation abort the replay.
func (e *Executor) Execute(ctx context.Context, page Clicker, seq sequence.Sequence) (Report, error) {
	rep := Report{Sequence: seq.Name, Steps: make([]Outcome, 0, len(seq.Steps))}
	for i, step := range seq.Steps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		out := Outcome{Index: i, Step: step}
		switch step.Type {
		case sequence.StepClick:
			found, err := page.Click(ctx, step.Selector)
			if err != nil {
				return rep, &StepError{Sequence: seq.Name, Index: i, Step: step, Err: err}
			}
			out.Resolved = found
			if !found {
				rep.Missing++
				e.logger.Warn().
					Str("sequence", seq.Name).
					Int("step", i).
					Str("selector", step.Selector).
					Str("selector_kind", string(step.SelectorKind)).
					Msg("click target not found, skipping")
			}
		case sequence.StepWait:
			if err := e.sleep(ctx, step.Duration()); err != nil {
				return rep, err
			}
			out.Resolved = true
		default:
			return rep, &StepError{Sequence: seq.Name, Index: i, Step: step, Err: fmt.Errorf("unknown step type %q", step.Type)}
		}
		rep.Steps = append(rep.Steps, out)
	}
	e.logger.Debug().Str("sequence", seq.Name).Int("steps", len(seq.Steps)).Int("missing", rep.Missing).Msg("sequence replayed")
	return rep, nil
}
