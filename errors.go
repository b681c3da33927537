package sdt

import (
	"fmt"
	"reflect"
)

// An UnsupportedTypeError is returned when a Go value cannot be represented
// in the data model.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return "sdt: unsupported type: " + e.Type.String()
}

// A MarshalerError represents an error from calling a MarshalSDT method.
type MarshalerError struct {
	Type reflect.Type
	Err  error
}

func (e *MarshalerError) Error() string {
	return "sdt: error calling MarshalSDT for type " + e.Type.String() + ": " + e.Err.Error()
}

func (e *MarshalerError) Unwrap() error { return e.Err }

// An UnmarshalerError represents an error from calling an UnmarshalSDT or
// UnmarshalText method.
type UnmarshalerError struct {
	Type reflect.Type
	Err  error
}

func (e *UnmarshalerError) Error() string {
	return "sdt: error calling unmarshaler for type " + e.Type.String() + ": " + e.Err.Error()
}

func (e *UnmarshalerError) Unwrap() error { return e.Err }

// A DepthError is returned when a value nests deeper than the configured
// maximum depth.
type DepthError struct {
	Max int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("sdt: exceeded max depth of %d", e.Max)
}
