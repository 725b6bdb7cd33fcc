package transform

import (
	"errors"

	"vector-georef/internal/controlpoint"
	"vector-georef/internal/lsq"
)

var (
	// ErrInsufficientControlPoints means the set is smaller than the model's minimum.
	ErrInsufficientControlPoints = errors.New("insufficient control points")
	// ErrDegenerateGeometry means the control points carry no information
	// about a required parameter, e.g. all sources coincide.
	ErrDegenerateGeometry = errors.New("degenerate control point geometry")
	// ErrInvalidDegree is returned for a polynomial degree outside 0..MaxDegree.
	ErrInvalidDegree = errors.New("invalid polynomial degree")
	// ErrUnknownModel is returned when parsing an unrecognized model name.
	ErrUnknownModel = errors.New("unknown transformation model")
)

// Solver and control point errors, re-exported so callers only need this package.
var (
	ErrSingularSystem        = lsq.ErrSingularSystem
	ErrUnderdeterminedSystem = lsq.ErrUnderdeterminedSystem
	ErrInvalidControlPoint   = controlpoint.ErrInvalidControlPoint
)
