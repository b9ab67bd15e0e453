// Package wizard drives the interactive configuration session: an initial
// pass over every step, an unbounded review/edit loop, and the finalizing
// stage that renders, packages, and provisions.
package wizard

import (
	"fmt"
)

// StepID identifies a configuration step. The declaration order is the
// execution order of the initial pass and the order of the edit menu.
type StepID int

const (
	StepNamespace StepID = iota
	StepRegion
	StepNotifications
	StepIAMRole
	StepConfigBucket
	StepChallenges
	StepCloudFront
	StepLoadBalancers
	StepTrigger

	stepCount // must be last
)

func (id StepID) String() string {
	switch id {
	case StepNamespace:
		return "Namespace"
	case StepRegion:
		return "AWS Region"
	case StepNotifications:
		return "Notifications"
	case StepIAMRole:
		return "IAM Role"
	case StepConfigBucket:
		return "S3 Config Bucket"
	case StepChallenges:
		return "Challenge Validation"
	case StepCloudFront:
		return "CloudFront"
	case StepLoadBalancers:
		return "Elastic Load Balancers"
	case StepTrigger:
		return "Lambda Function Trigger"
	}
	return fmt.Sprintf("StepID(%d)", int(id))
}

// StepFunc is one step body. A step stages its decisions locally and only
// writes them into the model when it succeeds; on error the model is left
// untouched for that step's fields.
type StepFunc func() error

// Registry holds the fixed table of steps. Steps are registered once at
// engine construction and re-run any number of times during editing.
type Registry struct {
	steps map[StepID]StepFunc
	order []StepID
}

func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[StepID]StepFunc),
	}
}

// Register binds a step body to its identifier. It panics on a nil body or
// a duplicate registration; both are programming errors.
func (r *Registry) Register(
	id StepID,
	fn StepFunc,
) {
	if fn == nil {
		panic(fmt.Sprintf("wizard: Register(%s, nil)", id))
	}
	if _, dup := r.steps[id]; dup {
		panic(fmt.Sprintf("wizard: Register called twice for step %s", id))
	}
	r.steps[id] = fn
	r.order = append(r.order, id)
}

// Order returns the step identifiers in declaration order.
func (r *Registry) Order() []StepID {
	return r.order
}

// RunInitial executes every registered step once, in declaration order.
// The first failing step aborts the pass.
func (r *Registry) RunInitial() error {
	for _, id := range r.order {
		if err := r.RunOne(id); err != nil {
			return fmt.Errorf("step %s: %w", id, err)
		}
	}
	return nil
}

// RunOne re-executes exactly one step. All other steps' fields are left
// untouched; this is what makes the edit loop safe.
func (r *Registry) RunOne(
	id StepID,
) error {
	fn, ok := r.steps[id]
	if !ok {
		return fmt.Errorf("unknown step %s", id)
	}
	return fn()
}
