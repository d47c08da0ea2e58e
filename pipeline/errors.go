package pipeline

import "fmt"

// ParseError means the provider replied, but not with the stage's required structure.
// It is never retried.
type ParseError struct {
	Stage  StageName
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: unparseable output: %s", e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DependencyMissingError means a stage was asked to run before one of its
// declared dependencies produced a validated result.
type DependencyMissingError struct {
	Stage   StageName
	Missing StageName
}

func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("%s: dependency %s has no result", e.Stage, e.Missing)
}
