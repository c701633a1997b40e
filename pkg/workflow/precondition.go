package workflow

import (
	"errors"
	"fmt"

	"github.com/mender-qa/mgmtctl/pkg/util"
)

// PreconditionChecker collects failed checks of a workflow before it
// mutates anything.
type PreconditionChecker struct {
	operation string
	resource  string
	errors    []error
}

// NewPreconditionChecker creates a new precondition checker
func NewPreconditionChecker(operation, resource string) *PreconditionChecker {
	return &PreconditionChecker{operation: operation, resource: resource}
}

// Check records a failure when condition is false.
func (p *PreconditionChecker) Check(condition bool, precondition, details string) *PreconditionChecker {
	if !condition {
		p.errors = append(p.errors, util.NewPreconditionError(p.operation, p.resource, precondition, details))
	}
	return p
}

// RequireAtLeast checks that have >= want entities are available.
func (p *PreconditionChecker) RequireAtLeast(what string, have, want int) *PreconditionChecker {
	return p.Check(have >= want, fmt.Sprintf("at least %d %s required", want, what),
		fmt.Sprintf("%d available", have))
}

// RequireNonEmpty checks that a named value is set.
func (p *PreconditionChecker) RequireNonEmpty(name, value string) *PreconditionChecker {
	return p.Check(value != "", name+" is required", "")
}

// Result returns nil, the single failure, or all failures joined.
func (p *PreconditionChecker) Result() error {
	switch len(p.errors) {
	case 0:
		return nil
	case 1:
		return p.errors[0]
	default:
		return errors.Join(p.errors...)
	}
}
