package chart

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedModelOutput = errors.New("malformed model output")
	ErrUnsupportedChartType = errors.New("unsupported chart type")
	ErrUnknownColumn        = errors.New("unknown column")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrModelUnavailable     = errors.New("model unavailable")

	ErrEmptyProblem = errors.New("problem statement is empty")
	ErrEmptyDataset = errors.New("dataset has no rows or no usable columns")
	ErrInvalidCount = errors.New("chart count must be at least 3")
)

// UnsupportedChartTypeError reports a type outside the allowed set.
type UnsupportedChartTypeError struct {
	Type    string
	Allowed []ChartType
}

func (e *UnsupportedChartTypeError) Error() string {
	names := make([]string, len(e.Allowed))
	for i, t := range e.Allowed {
		names[i] = string(t)
	}
	return fmt.Sprintf("unsupported chart type %q (allowed: %s)", e.Type, strings.Join(names, ", "))
}

func (e *UnsupportedChartTypeError) Unwrap() error { return ErrUnsupportedChartType }

// UnknownColumnError reports a column reference the dataset does not have.
type UnknownColumnError struct {
	Field  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q in %s", e.Column, e.Field)
}

func (e *UnknownColumnError) Unwrap() error { return ErrUnknownColumn }

// MalformedOutputError carries a snippet of the text that failed to decode.
type MalformedOutputError struct {
	Snippet string
	Err     error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output near %q: %v", e.Snippet, e.Err)
}

func (e *MalformedOutputError) Unwrap() []error { return []error{ErrMalformedModelOutput, e.Err} }

// ModelError wraps a runtime failure, including deadline expiry.
type ModelError struct{ Err error }

func (e *ModelError) Error() string {
	if e.Err == nil {
		return ErrModelUnavailable.Error()
	}
	return fmt.Sprintf("model unavailable: %v", e.Err)
}

func (e *ModelError) Unwrap() []error { return []error{ErrModelUnavailable, e.Err} }

// InsufficientDataError explains why a spec cannot be drawn from the data.
type InsufficientDataError struct {
	Type   ChartType
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %s", e.Type, e.Reason)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }
