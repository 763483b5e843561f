package argparser

import (
	"fmt"
	"reflect"
	"strings"
)

// ConfigurationError reports a malformed interface declaration. It is
// detected while the grammar is built, before any token is read, and is
// not recoverable: Build panics with it, New returns it.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error at field %q: %s", e.Field, e.Reason)
}

// UnsupportedTypeError reports a declared field type that cannot be
// mapped to any known shape. Same phase as ConfigurationError.
type UnsupportedTypeError struct {
	Field string
	Type  reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type %v at field %q", e.Type, e.Field)
}

// MissingValueError reports that an occurrence demanded more value
// tokens than remained in the stream.
type MissingValueError struct {
	Field    string
	Expected int
	Got      int
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf(
		"argument %q expects %d value(s), got %d", e.Field, e.Expected, e.Got,
	)
}

// ConversionError reports a token no candidate element type could
// convert. For union fields it is raised only after every alternative
// has been tried in declaration order.
type ConversionError struct {
	Field    string
	Token    string
	Position int
	Type     string
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf(
		"cannot convert %q (argument %q, position %d) to %s: %v",
		e.Token, e.Field, e.Position, e.Type, e.Err,
	)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ValidationError reports a validator rejecting an otherwise well-formed
// value. The first failing validator aborts the parse; later validators
// in the chain never run.
type ValidationError struct {
	Field     string
	Validator string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %q: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MissingRequiredArgumentError names every required spec left
// unsatisfied after the full pass over the token stream.
type MissingRequiredArgumentError struct {
	Missing []string
}

func (e *MissingRequiredArgumentError) Error() string {
	return fmt.Sprintf(
		"the following arguments are required: %s",
		strings.Join(e.Missing, ", "),
	)
}

// MissingCommandError reports that a mandatory nested command was not
// selected.
type MissingCommandError struct {
	Field    string
	Commands []string
}

func (e *MissingCommandError) Error() string {
	return fmt.Sprintf(
		"a command is required: one of %s", strings.Join(e.Commands, ", "),
	)
}

// UnexpectedArgumentError reports an unrecognized token under the
// ExtraError policy.
type UnexpectedArgumentError struct {
	Token    string
	Position int
}

func (e *UnexpectedArgumentError) Error() string {
	return fmt.Sprintf("unrecognized argument %q (position %d)", e.Token, e.Position)
}
