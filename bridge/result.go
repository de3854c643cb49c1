package bridge

import (
	"context"
	"time"
)

// Result is the value produced by one successful command.
//
// A Result keeps a non-owning reference to the interpreter instance that
// produced it. String, Int, Float and Bool only look at the raw value and
// always work. List and Strings ask the producing instance to split the
// value and fail with ErrInterpClosed once that instance is gone, which is
// always the case for results delivered by Cmd.
type Result struct {
	raw      string
	script   string
	duration time.Duration
	owner    *handle
}

func newResult(raw, script string, d time.Duration, owner *handle) *Result {
	return &Result{raw: raw, script: script, duration: d, owner: owner}
}

// String returns the raw interpreter value.
func (r *Result) String() string {
	return r.raw
}

// Script returns the command that produced the result.
func (r *Result) Script() string {
	return r.script
}

// Duration is how long the command took to evaluate.
func (r *Result) Duration() time.Duration {
	return r.duration
}

// Int coerces the value to an integer.
func (r *Result) Int() (int64, error) {
	return parseInt(r.raw)
}

// Float coerces the value to a real number. Integer forms are accepted.
func (r *Result) Float() (float64, error) {
	return parseFloat(r.raw)
}

// Bool coerces the value using Tcl truthiness rules.
func (r *Result) Bool() (bool, error) {
	return parseBool(r.raw)
}

// List splits the value into its list elements. Each element is a Result
// bound to the same interpreter instance.
func (r *Result) List(ctx context.Context) ([]*Result, error) {
	items, err := r.split(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, len(items))
	for i, item := range items {
		out[i] = newResult(item, r.script, 0, r.owner)
	}
	return out, nil
}

// Strings splits the value into its list elements.
func (r *Result) Strings(ctx context.Context) ([]string, error) {
	return r.split(ctx)
}

func (r *Result) split(ctx context.Context) ([]string, error) {
	if r.owner == nil || r.owner.isClosed() {
		return nil, &ConversionError{Value: r.raw, Kind: "list", Err: ErrInterpClosed}
	}

	items, err := r.owner.splitList(ctx, r.raw)
	if err != nil {
		return nil, &ConversionError{Value: r.raw, Kind: "list", Err: err}
	}
	return items, nil
}
