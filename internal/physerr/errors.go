// Package physerr defines the error kinds reported by the physics core.
//
// Every kind is registered in the "nbody" codespace so that wrapped errors
// keep their identity across package boundaries:
//
//	if errors.Is(err, physerr.ErrNumericInstability) {
//	    // freeze the simulation
//	}
package physerr

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace groups all engine errors.
const Codespace = "nbody"

var (
	// ErrInvalidParticleInput indicates a non-positive mass, a non-finite
	// value or a position/velocity that is not three-dimensional.
	ErrInvalidParticleInput = errorsmod.Register(Codespace, 2, "invalid particle input")

	// ErrDegenerateGeometry indicates a zero-extent bounding box for tree
	// construction. Callers fall back to direct summation for that step.
	ErrDegenerateGeometry = errorsmod.Register(Codespace, 3, "degenerate geometry")

	// ErrNumericInstability indicates a velocity at or above the speed of
	// light, a zero mass reached during integration, or NaN/Inf in the state.
	ErrNumericInstability = errorsmod.Register(Codespace, 4, "numeric instability")

	// ErrIndexOutOfRange indicates a remove request for a row that does not exist.
	ErrIndexOutOfRange = errorsmod.Register(Codespace, 5, "index out of range")

	// ErrInvalidConfig indicates a configuration value outside its valid range.
	ErrInvalidConfig = errorsmod.Register(Codespace, 6, "invalid configuration")

	// ErrUnknownOption indicates an unrecognised integrator, interaction model
	// or distribution name.
	ErrUnknownOption = errorsmod.Register(Codespace, 7, "unknown option")

	// ErrFrozen is returned by a simulation halted after a numeric instability.
	ErrFrozen = errorsmod.Register(Codespace, 8, "simulation frozen")
)

// Wrapf annotates err with a formatted message while keeping its kind.
func Wrapf(err error, format string, args ...interface{}) error {
	return errorsmod.Wrapf(err, format, args...)
}

// Wrap annotates err with a message while keeping its kind.
func Wrap(err error, msg string) error {
	return errorsmod.Wrap(err, msg)
}
