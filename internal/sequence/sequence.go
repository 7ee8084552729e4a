// Package sequence defines action sequences: named, ordered click and wait
// steps that reproduce a navigation path inside the target application.
package sequence

import (
	"fmt"
	"strings"
	"time"
)

// StepType tags the variant of a Step.
type StepType string

const (
	StepClick StepType = "click"
	StepWait  StepType = "wait"
)

// SelectorKind records how a click selector was derived so replay failures
// can be attributed to selector fragility rather than DOM change.
type SelectorKind string

const (
	KindComponentPath SelectorKind = "component-path"
	KindID            SelectorKind = "id"
	KindLabel         SelectorKind = "label"
	KindText          SelectorKind = "text"
	KindPositional    SelectorKind = "positional"
)

// Step is a single action. Click steps carry a selector, wait steps a
// duration in milliseconds.
type Step struct {
	Type         StepType     `json:"type" yaml:"type"`
	Selector     string       `json:"selector,omitempty" yaml:"selector,omitempty"`
	SelectorKind SelectorKind `json:"selectorKind,omitempty" yaml:"selectorKind,omitempty"`
	DurationMs   int          `json:"durationMs,omitempty" yaml:"durationMs,omitempty"`
}

// Click returns a click step.
func Click(selector string, kind SelectorKind) Step {
	return Step{Type: StepClick, Selector: selector, SelectorKind: kind}
}

// Wait returns a wait step.
func Wait(ms int) Step {
	return Step{Type: StepWait, DurationMs: ms}
}

// Duration is the wait length of a wait step.
func (s Step) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// Validate checks the variant is internally consistent.
func (s Step) Validate() error {
	switch s.Type {
	case StepClick:
		if strings.TrimSpace(s.Selector) == "" {
			return fmt.Errorf("click step without selector")
		}
		if s.DurationMs != 0 {
			return fmt.Errorf("click step with duration")
		}
	case StepWait:
		if s.DurationMs < 0 {
			return fmt.Errorf("wait step with negative duration %d", s.DurationMs)
		}
		if s.Selector != "" {
			return fmt.Errorf("wait step with selector")
		}
	default:
		return fmt.Errorf("unknown step type %q", s.Type)
	}
	return nil
}

func (s Step) String() string {
	if s.Type == StepWait {
		return fmt.Sprintf("wait(%dms)", s.DurationMs)
	}
	return fmt.Sprintf("click(%s)", s.Selector)
}

// Steps is an ordered step list with value semantics: Clone and Append
// never share a backing array with the receiver.
type Steps []Step

// Clone returns an independent copy.
func (s Steps) Clone() Steps {
	if s == nil {
		return nil
	}
	out := make(Steps, len(s))
	copy(out, s)
	return out
}

// Append returns a copy of s followed by more.
func (s Steps) Append(more ...Step) Steps {
	out := make(Steps, 0, len(s)+len(more))
	out = append(out, s...)
	return append(out, more...)
}

// Clicks returns the selectors of every click step in order.
func (s Steps) Clicks() []string {
	var out []string
	for _, st := range s {
		if st.Type == StepClick {
			out = append(out, st.Selector)
		}
	}
	return out
}

// Sequence is a named, replayable path to a target state.
type Sequence struct {
	Name  string `json:"name" yaml:"name"`
	Steps Steps  `json:"actions" yaml:"actions"`
}

// New builds a sequence owning a copy of steps.
func New(name string, steps ...Step) Sequence {
	return Sequence{Name: name, Steps: Steps(steps).Clone()}
}

// Validate checks the name and every step.
func (q Sequence) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return fmt.Errorf("sequence without name")
	}
	for i, st := range q.Steps {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("sequence %q step %d: %w", q.Name, i, err)
		}
	}
	return nil
}

// JoinName builds the human readable path, e.g. "Reports - Daily - Export".
func JoinName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " - ")
}
